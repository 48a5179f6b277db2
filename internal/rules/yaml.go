package rules

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lvonguyen/s1see/internal/model"
)

const defaultSequenceWindow = 15 * time.Second

type yamlFieldExtraction struct {
	Target string `yaml:"target"`
	Source string `yaml:"source"`
}

type yamlSingleMessageRule struct {
	EventName  string            `yaml:"event_name"`
	MsgType    string            `yaml:"msg_type"`
	Attributes map[string]string `yaml:"attributes"`
	EventData  []yamlFieldExtraction `yaml:"event_data"`
}

type yamlSequenceRule struct {
	EventName     string            `yaml:"event_name"`
	FirstMsgType  string            `yaml:"first_msg_type"`
	SecondMsgType string            `yaml:"second_msg_type"`
	TimeWindowMs  int               `yaml:"time_window_ms"`
	Attributes    map[string]string `yaml:"attributes"`
	EventData     []yamlFieldExtraction `yaml:"event_data"`
}

type yamlRuleset struct {
	ID              string                   `yaml:"id"`
	Version         string                   `yaml:"version"`
	SingleMessage   []yamlSingleMessageRule  `yaml:"single_message_rules"`
	Sequence        []yamlSequenceRule       `yaml:"sequence_rules"`
}

type yamlRulesetDocument struct {
	Ruleset *yamlRuleset `yaml:"ruleset"`
}

// LoadRulesetFile reads a single YAML ruleset document from path.
func LoadRulesetFile(path string) (model.Ruleset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Ruleset{}, fmt.Errorf("read ruleset file: %w", err)
	}
	return ParseRuleset(data)
}

// ParseRuleset decodes a single YAML ruleset document.
func ParseRuleset(data []byte) (model.Ruleset, error) {
	var doc yamlRulesetDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return model.Ruleset{}, fmt.Errorf("parse ruleset yaml: %w", err)
	}
	if doc.Ruleset == nil {
		return model.Ruleset{}, fmt.Errorf("missing 'ruleset' key in yaml")
	}
	rs := doc.Ruleset

	version := rs.Version
	if version == "" {
		version = "1.0"
	}

	ruleset := model.Ruleset{
		ID:      rs.ID,
		Version: version,
	}

	for _, r := range rs.SingleMessage {
		ruleset.SingleRules = append(ruleset.SingleRules, model.SingleMessageRule{
			EventName:  r.EventName,
			MsgType:    r.MsgType,
			Attributes: r.Attributes,
			EventData:  convertEventData(r.EventData),
		})
	}

	for _, r := range rs.Sequence {
		window := defaultSequenceWindow
		if r.TimeWindowMs > 0 {
			window = time.Duration(r.TimeWindowMs) * time.Millisecond
		}
		ruleset.SequenceRules = append(ruleset.SequenceRules, model.SequenceRule{
			EventName:     r.EventName,
			FirstMsgType:  r.FirstMsgType,
			SecondMsgType: r.SecondMsgType,
			TimeWindow:    window,
			Attributes:    r.Attributes,
			EventData:     convertEventData(r.EventData),
		})
	}

	return ruleset, nil
}

func convertEventData(in []yamlFieldExtraction) []model.FieldExtraction {
	if len(in) == 0 {
		return nil
	}
	out := make([]model.FieldExtraction, len(in))
	for i, e := range in {
		out[i] = model.FieldExtraction{Target: e.Target, Source: e.Source}
	}
	return out
}
