package record

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/sherlock/internal/model"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func schema() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// decode parses a YAML record into out and validates its schema. With strict
// set, unknown keys are rejected. Any failure is a RecordParseError: records
// are never partially trusted.
func decode(rel string, data []byte, out any, strict bool) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(strict)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return parseViolation(rel, fmt.Errorf("record is empty"))
		}
		return parseViolation(rel, err)
	}
	if err := schema().Struct(out); err != nil {
		return parseViolation(rel, schemaError(err))
	}
	return nil
}

// encode marshals a record with an optional leading comment block.
func encode(header string, v any) ([]byte, error) {
	var buf bytes.Buffer
	if header != "" {
		for _, line := range strings.Split(strings.TrimRight(header, "\n"), "\n") {
			buf.WriteString("# ")
			buf.WriteString(line)
			buf.WriteString("\n")
		}
		buf.WriteString("\n")
	}
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// schemaError flattens validator field errors into one readable error.
func schemaError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s (value %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

func parseViolation(rel string, err error) *model.Violation {
	return &model.Violation{
		Kind:    model.KindRecordParse,
		Title:   "malformed record",
		Subject: rel,
		Remedy:  "fix the record file by hand; malformed records are never partially trusted",
		Err:     err,
	}
}
