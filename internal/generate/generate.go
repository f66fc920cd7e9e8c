// Package generate turns an uploaded document into exam questions.
//
// Only the demo generator exists: it ignores the document's content and
// returns a fixed, localized set of sample questions for the requested types.
package generate

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	appI18n "github.com/pavelanni/questionai/internal/i18n"
	"github.com/pavelanni/questionai/internal/model"
)

var (
	ErrNoQuestionTypes   = errors.New("no question types selected")
	ErrInvalidDifficulty = errors.New("invalid difficulty")
	ErrNotPDF            = errors.New("file is not a PDF")
)

var pdfMagic = []byte("%PDF-")

// Types selects which kinds of questions to generate. The JSON names match the
// upload form's questionTypes field.
type Types struct {
	MCQ         bool `json:"mcq"`
	ShortAnswer bool `json:"shortAnswer"`
	LongAnswer  bool `json:"longAnswer"`
	CaseStudy   bool `json:"caseStudy"`
}

// Any reports whether at least one type is selected.
func (t Types) Any() bool {
	return t.MCQ || t.ShortAnswer || t.LongAnswer || t.CaseStudy
}

// ParseTypes decodes the questionTypes form value.
func ParseTypes(raw string) (Types, error) {
	var t Types
	if raw == "" {
		return t, ErrNoQuestionTypes
	}
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return t, fmt.Errorf("parse question types: %w", err)
	}
	if !t.Any() {
		return t, ErrNoQuestionTypes
	}
	return t, nil
}

// Request describes what to generate.
type Request struct {
	Types      Types
	Difficulty model.Difficulty
	Language   string // language code, see i18n.Match
}

// Document is an uploaded source file.
type Document struct {
	Name string
	Size int64
	Hash string // hex SHA-256 of the content
}

// Inspect reads an upload, checks it starts like a PDF and returns its size
// and content hash.
func Inspect(name string, r io.Reader) (Document, error) {
	h := sha256.New()
	head := make([]byte, len(pdfMagic))
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Document{}, fmt.Errorf("read %s: %w", name, err)
	}
	if !bytes.Equal(head[:n], pdfMagic) {
		return Document{}, ErrNotPDF
	}
	h.Write(head[:n])
	rest, err := io.Copy(h, r)
	if err != nil {
		return Document{}, fmt.Errorf("read %s: %w", name, err)
	}
	return Document{
		Name: name,
		Size: int64(n) + rest,
		Hash: hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// Generator produces questions for a document.
type Generator interface {
	Generate(ctx context.Context, doc Document, req Request) ([]model.Question, error)
}

// Demo is a Generator that returns fixed sample questions.
type Demo struct{}

// Generate returns two multiple-choice questions and one question of each
// other selected kind, all tagged with the requested difficulty and written
// in the requested language.
func (Demo) Generate(ctx context.Context, _ Document, req Request) ([]model.Question, error) {
	if !req.Types.Any() {
		return nil, ErrNoQuestionTypes
	}
	if !req.Difficulty.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDifficulty, req.Difficulty)
	}
	ctx = appI18n.WithLanguage(ctx, req.Language)
	t := func(id string) string { return appI18n.T(ctx, id) }

	var qs []model.Question
	if req.Types.MCQ {
		qs = append(qs,
			model.Question{
				Kind:           model.KindMultipleChoice,
				Prompt:         t("QCapitalPrompt"),
				Options:        []string{t("QCapitalLondon"), t("QCapitalBerlin"), t("QCapitalParis"), t("QCapitalMadrid")},
				ExpectedAnswer: t("QCapitalParis"),
				Marks:          2,
			},
			model.Question{
				Kind:           model.KindMultipleChoice,
				Prompt:         t("QPlanetPrompt"),
				Options:        []string{t("QPlanetVenus"), t("QPlanetMars"), t("QPlanetJupiter"), t("QPlanetSaturn")},
				ExpectedAnswer: t("QPlanetMars"),
				Marks:          2,
			},
		)
	}
	if req.Types.ShortAnswer {
		qs = append(qs, model.Question{
			Kind:           model.KindShortAnswer,
			Prompt:         t("QWaterCyclePrompt"),
			ExpectedAnswer: t("QWaterCycleAnswer"),
			Marks:          3,
		})
	}
	if req.Types.LongAnswer {
		qs = append(qs, model.Question{
			Kind:           model.KindLongAnswer,
			Prompt:         t("QClimatePrompt"),
			ExpectedAnswer: t("QClimateAnswer"),
			Marks:          5,
		})
	}
	if req.Types.CaseStudy {
		qs = append(qs, model.Question{
			Kind:           model.KindCaseStudy,
			Prompt:         t("QBusinessPrompt"),
			Context:        t("QBusinessContext"),
			ExpectedAnswer: t("QBusinessAnswer"),
			Marks:          10,
		})
	}

	for i := range qs {
		qs[i].Difficulty = req.Difficulty
	}
	return qs, nil
}
