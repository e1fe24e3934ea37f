package rules

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/JonMunkholm/moodlelogsmart/internal/core"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed bloom_taxonomy.yaml
var bundled []byte

// Rule file layout. Pointers distinguish a missing key from a zero value.
type ruleFile struct {
	Rules []ruleDoc `yaml:"rules" validate:"required,min=1,dive"`
}

type ruleDoc struct {
	ID         string         `yaml:"id" validate:"required"`
	Name       string         `yaml:"name" validate:"required"`
	Priority   *int           `yaml:"priority" validate:"required"`
	Conditions []conditionDoc `yaml:"conditions" validate:"dive"`
	Action     *actionDoc     `yaml:"action" validate:"required"`
}

type conditionDoc struct {
	Field    string `yaml:"field" validate:"required"`
	Operator string `yaml:"operator" validate:"required,oneof=equals in contains"`
	Value    any    `yaml:"value"`
	Values   []any  `yaml:"values"`
}

type actionDoc struct {
	ActivityType string `yaml:"activity_type" validate:"required"`
	BloomLevel   string `yaml:"bloom_level" validate:"required"`
	IsActive     bool   `yaml:"is_active"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Parse decodes and validates a YAML rule document.
func Parse(data []byte) ([]Rule, error) {
	var doc ruleFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, core.Errorf(core.KindRuleDefinitionInvalid, "rule file is empty")
		}
		return nil, core.WrapError(core.KindRuleDefinitionInvalid, "decode", err)
	}

	if err := validate.Struct(doc); err != nil {
		return nil, validationError(err)
	}

	seen := make(map[string]struct{}, len(doc.Rules))
	out := make([]Rule, 0, len(doc.Rules))
	for i, rd := range doc.Rules {
		if _, dup := seen[rd.ID]; dup {
			return nil, &core.Error{
				Kind:  core.KindRuleDefinitionInvalid,
				Field: fmt.Sprintf("rules[%d].id", i),
				Value: rd.ID,
				Msg:   "duplicate rule id",
			}
		}
		seen[rd.ID] = struct{}{}
		out = append(out, rd.rule())
	}
	return out, nil
}

func (rd ruleDoc) rule() Rule {
	conds := make([]Condition, len(rd.Conditions))
	for i, cd := range rd.Conditions {
		conds[i] = Condition{
			Field:    cd.Field,
			Operator: Operator(cd.Operator),
			Value:    scalarString(cd.Value),
			Values:   scalarStrings(cd.Values),
		}
	}
	return Rule{
		ID:         rd.ID,
		Name:       rd.Name,
		Priority:   *rd.Priority,
		Conditions: conds,
		Action: Action{
			ActivityType: rd.Action.ActivityType,
			BloomLevel:   rd.Action.BloomLevel,
			IsActive:     rd.Action.IsActive,
		},
	}
}

// scalarString turns YAML scalars into the string form event fields are
// compared in, so `value: 5` matches a cell reading "5". Nil and
// collections are left alone.
func scalarString(v any) any {
	switch v := v.(type) {
	case bool, int, int64, uint64, float64:
		return fmt.Sprint(v)
	}
	return v
}

func scalarStrings(vs []any) []any {
	if vs == nil {
		return nil
	}
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = scalarString(v)
	}
	return out
}

// validationError reports the first failed constraint by its YAML path,
// e.g. rules[2].action.bloom_level.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return core.WrapError(core.KindRuleDefinitionInvalid, "validate", err)
	}

	fe := verrs[0]
	path := fe.Namespace()
	if i := strings.IndexByte(path, '.'); i >= 0 {
		path = path[i+1:]
	}

	cerr := &core.Error{
		Kind:  core.KindRuleDefinitionInvalid,
		Field: path,
		Msg:   "missing required key",
	}
	switch fe.Tag() {
	case "oneof":
		cerr.Value = fmt.Sprint(fe.Value())
		cerr.Msg = "must be one of: " + fe.Param()
	case "min":
		cerr.Msg = "must not be empty"
	}
	return cerr
}

// Load reads and parses the rule file at path.
func Load(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.WrapError(core.KindRuleDefinitionInvalid, path, err)
	}
	return Parse(data)
}

// Default returns the bundled Bloom taxonomy rules.
func Default() ([]Rule, error) {
	return Parse(bundled)
}

// LoadEngine builds an engine from path, or from the bundled rules when
// path is empty.
func LoadEngine(path string) (*Engine, error) {
	var (
		rs  []Rule
		err error
	)
	if path == "" {
		rs, err = Default()
	} else {
		rs, err = Load(path)
	}
	if err != nil {
		return nil, err
	}
	return NewEngine(rs), nil
}
