package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ayusman/voiceheard/internal/events"
	"github.com/ayusman/voiceheard/internal/gloss"
	"github.com/ayusman/voiceheard/internal/store"
	"github.com/ayusman/voiceheard/internal/translate"
)

// GenerateRequest asks for the sign timeline of a text.
type GenerateRequest struct {
	Text string `json:"text"`
	// Lang is the language of Text; detected when empty.
	Lang string `json:"lang,omitempty"`
}

// Generate plans the sign timeline for req. Text in a language other than the
// dictionary's is translated first; when that fails the original text is
// planned and TranslationUnavailable is reported. Any number of Generate
// calls may run at once, but none while recognition is active.
func (o *Orchestrator) Generate(ctx context.Context, req GenerateRequest) (gloss.Timeline, error) {
	if strings.TrimSpace(req.Text) == "" {
		return gloss.Timeline{}, gloss.ErrEmptyInput
	}
	if err := o.enterGeneration(); err != nil {
		return gloss.Timeline{}, err
	}
	defer o.leaveGeneration()

	text := o.toDictionaryLanguage(ctx, req)

	tl, err := o.planner.Plan(ctx, text)
	if err != nil {
		return gloss.Timeline{}, fmt.Errorf("plan %q: %w", text, err)
	}
	for _, word := range tl.Unmapped {
		o.emit(events.UnknownGlossMapping, "", word)
	}

	if o.config.History != nil {
		rec := store.HistoryRecord{
			Direction: store.DirectionGeneration,
			Input:     req.Text,
			Output:    strings.Join(tl.IDs(), " "),
		}
		if err := o.config.History.Append(ctx, rec); err != nil {
			o.log.Error("failed to record history", "error", err)
		}
	}

	o.log.Debug("timeline planned", "glosses", len(tl.Glosses), "duration", tl.Duration, "unmapped", len(tl.Unmapped))
	return tl, nil
}

// Sign plans a single sign or finger-spelled letter.
func (o *Orchestrator) Sign(ctx context.Context, sign string) (gloss.Timeline, error) {
	if err := o.enterGeneration(); err != nil {
		return gloss.Timeline{}, err
	}
	defer o.leaveGeneration()

	return o.planner.Sign(ctx, sign)
}

func (o *Orchestrator) toDictionaryLanguage(ctx context.Context, req GenerateRequest) string {
	target := o.planner.Language()
	source := req.Lang
	if source == "" {
		source = translate.DetectLanguage(req.Text)
	}
	if o.config.Translator == nil || target == "" || source == target {
		return req.Text
	}

	res, err := o.config.Translator.Translate(ctx, req.Text, target)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			o.emit(events.TranslationUnavailable, "", err.Error())
		}
		return req.Text
	}
	return res.Text
}

func (o *Orchestrator) enterGeneration() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active != nil {
		return ErrSessionBusy
	}
	o.generating++
	return nil
}

func (o *Orchestrator) leaveGeneration() {
	o.mu.Lock()
	o.generating--
	o.mu.Unlock()
}
