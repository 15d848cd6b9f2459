package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/irfndi/newsindex-ai-go/internal/utils"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report JSON field names so errors match the wire format.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// validateStruct runs the struct tags of v and converts failures into a
// utils.ValidationError.
func validateStruct(v interface{}) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return utils.NewValidationError(err.Error())
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		ns := fe.Namespace()
		if idx := strings.Index(ns, "."); idx >= 0 {
			ns = ns[idx+1:]
		}
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s (got %v)", ns, fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s (got %v)", ns, fe.Tag(), fe.Value()))
		}
	}
	return utils.NewValidationError("validation failed: " + strings.Join(msgs, "; "))
}

// Validate checks the article fields required for scoring.
func (a Article) Validate() error {
	return validateStruct(a)
}

// Validate checks the invariants of a scored record.
func (r SentimentRecord) Validate() error {
	return validateStruct(r)
}

// Validate checks the ranges of a snapshot.
func (s MarketSnapshot) Validate() error {
	if err := validateStruct(s); err != nil {
		return err
	}
	if !s.Date.IsValid() {
		return utils.NewValidationErrorf("validation failed: date %q is not YYYY-MM-DD", s.Date)
	}
	return nil
}

// Validate checks an analysis result, including the summary totals and
// every nested sentiment record.
func (a AnalysisResult) Validate() error {
	if err := validateStruct(a); err != nil {
		return err
	}
	if !a.Date.IsValid() {
		return utils.NewValidationErrorf("validation failed: date %q is not YYYY-MM-DD", a.Date)
	}
	if a.Summary.Total() != a.TotalArticles {
		return utils.NewValidationErrorf("validation failed: summary counts %d do not match totalArticles %d",
			a.Summary.Total(), a.TotalArticles)
	}
	seen := make(map[int]struct{}, len(a.SentimentRecords))
	for _, r := range a.SentimentRecords {
		if _, dup := seen[r.ArticleID]; dup {
			return utils.NewValidationErrorf("validation failed: duplicate articleId %d", r.ArticleID)
		}
		seen[r.ArticleID] = struct{}{}
	}
	return nil
}

// ValidateArticles checks a batch and rejects duplicate ids.
func ValidateArticles(articles []Article) error {
	seen := make(map[int]struct{}, len(articles))
	for i, a := range articles {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("article %d: %w", i, err)
		}
		if _, dup := seen[a.ID]; dup {
			return utils.NewValidationErrorf("validation failed: duplicate article id %d", a.ID)
		}
		seen[a.ID] = struct{}{}
	}
	return nil
}
