// Package disambiguate extracts search keywords from natural-language query
// text using a slot-extraction service.
package disambiguate

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lexruntimev2"
	"github.com/aws/aws-sdk-go-v2/service/lexruntimev2/types"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/photosearch/internal/label"
)

// SlotName is the slot holding the keywords; some bots capitalize it.
const SlotName = "keywords"

var slotNames = []string{SlotName, "Keywords"}

// LexAPI is the subset of the Lex V2 runtime client used here.
type LexAPI interface {
	RecognizeText(ctx context.Context, in *lexruntimev2.RecognizeTextInput, opts ...func(*lexruntimev2.Options)) (*lexruntimev2.RecognizeTextOutput, error)
}

// LexConfig identifies the bot. Any empty field disables the disambiguator.
type LexConfig struct {
	BotID      string
	BotAliasID string
	LocaleID   string
}

// Lex reads the keywords slot of a Lex V2 bot.
type Lex struct {
	api     LexAPI
	cfg     LexConfig
	enabled bool
	logger  *zap.Logger
}

// NewLex wraps a Lex runtime client.
func NewLex(api LexAPI, cfg LexConfig, logger *zap.Logger) *Lex {
	enabled := cfg.BotID != "" && cfg.BotAliasID != "" && cfg.LocaleID != ""
	if !enabled {
		logger.Warn("lex bot not configured, disambiguation disabled")
	}
	return &Lex{api: api, cfg: cfg, enabled: enabled, logger: logger}
}

// NewLexFromConfig builds the runtime client from an AWS config.
func NewLexFromConfig(awsCfg aws.Config, cfg LexConfig, logger *zap.Logger) *Lex {
	return NewLex(lexruntimev2.NewFromConfig(awsCfg), cfg, logger)
}

// Keywords returns the tokenized keywords slot of the top interpretation.
// A missing slot yields no keywords and no error; only a failed call is an
// error.
func (l *Lex) Keywords(ctx context.Context, text, sessionID string) ([]string, error) {
	if !l.enabled {
		return nil, nil
	}
	out, err := l.api.RecognizeText(ctx, &lexruntimev2.RecognizeTextInput{
		BotId:      aws.String(l.cfg.BotID),
		BotAliasId: aws.String(l.cfg.BotAliasID),
		LocaleId:   aws.String(l.cfg.LocaleID),
		SessionId:  aws.String(sessionID),
		Text:       aws.String(text),
	})
	if err != nil {
		return nil, fmt.Errorf("recognize text: %w", err)
	}
	raw := slotValue(out.Interpretations)
	l.logger.Debug("lex slot", zap.String("session_id", sessionID), zap.String("value", raw))
	return label.Tokenize(raw), nil
}

func slotValue(interpretations []types.Interpretation) string {
	if len(interpretations) == 0 || interpretations[0].Intent == nil {
		return ""
	}
	slots := interpretations[0].Intent.Slots
	for _, name := range slotNames {
		slot, ok := slots[name]
		if !ok || slot.Value == nil {
			continue
		}
		if v := aws.ToString(slot.Value.InterpretedValue); v != "" {
			return v
		}
		if v := aws.ToString(slot.Value.OriginalValue); v != "" {
			return v
		}
	}
	return ""
}
