package recommend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/storepulse/sales-engine/internal/model"
)

var (
	// ErrNoJSONArray is returned when the model text contains no
	// bracket-delimited span.
	ErrNoJSONArray = errors.New("recommend: no JSON array in model output")

	// ErrInvalidOutput is returned when the extracted array does not decode
	// into usable recommendations.
	ErrInvalidOutput = errors.New("recommend: invalid model output")
)

// DefaultConfidence is assigned to model recommendations without one.
const DefaultConfidence = 0.7

// rawRecommendation is the lenient shape accepted from the model. It never
// leaves this package.
type rawRecommendation struct {
	Type        string          `json:"type"`
	Message     string          `json:"message"`
	ProductID   json.RawMessage `json:"product_id"`
	ProductName string          `json:"product_name"`
	Category    string          `json:"category"`
	Confidence  *float64        `json:"confidence"`
}

// extractArray returns the span from the first '[' to the last ']' in text.
// Models often wrap JSON in prose or code fences.
func extractArray(text string) (string, error) {
	start := strings.IndexByte(text, '[')
	end := strings.LastIndexByte(text, ']')
	if start < 0 || end < start {
		return "", ErrNoJSONArray
	}
	return text[start : end+1], nil
}

// ParseModelOutput extracts, decodes and validates model recommendations.
// Either every element is usable or an error is returned; there is no
// partial result.
func ParseModelOutput(text string, top []model.ProductStat) ([]model.Recommendation, error) {
	span, err := extractArray(text)
	if err != nil {
		return nil, err
	}

	var raws []rawRecommendation
	if err := json.Unmarshal([]byte(span), &raws); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if len(raws) == 0 {
		return nil, fmt.Errorf("%w: empty array", ErrInvalidOutput)
	}

	recs := make([]model.Recommendation, 0, len(raws))
	for i, raw := range raws {
		rec, err := normalize(raw, top)
		if err != nil {
			return nil, fmt.Errorf("%w: element %d: %v", ErrInvalidOutput, i, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func normalize(raw rawRecommendation, top []model.ProductStat) (model.Recommendation, error) {
	if strings.TrimSpace(raw.Type) == "" {
		return model.Recommendation{}, errors.New("missing type")
	}
	recType := model.RecommendationType(raw.Type)
	if !recType.Valid() {
		return model.Recommendation{}, fmt.Errorf("unknown type %q", raw.Type)
	}
	if strings.TrimSpace(raw.Message) == "" {
		return model.Recommendation{}, errors.New("missing message")
	}

	confidence := DefaultConfidence
	if raw.Confidence != nil {
		confidence = *raw.Confidence
		if confidence < 0 || confidence > 1 {
			return model.Recommendation{}, fmt.Errorf("confidence %v out of range", confidence)
		}
	}

	rec := model.Recommendation{
		Type:       recType,
		Message:    raw.Message,
		Category:   raw.Category,
		Confidence: confidence,
	}

	if id, ok := parseProductID(raw.ProductID); ok {
		rec.ProductID = &id
	} else if raw.ProductName != "" {
		for _, p := range top {
			if p.Name == raw.ProductName {
				id := p.ProductID
				rec.ProductID = &id
				break
			}
		}
	}
	return rec, nil
}

// parseProductID accepts an integer, an integral float, or a string holding
// an integer. Anything else is treated as absent.
func parseProductID(raw json.RawMessage) (int64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
	}
	if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
		return id, true
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && f == float64(int64(f)) {
		return int64(f), true
	}
	return 0, false
}
