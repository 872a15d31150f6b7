package parser

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/ElMoha943/VRC-LogAnalyzer/internal/models"
)

// Pattern binds a record kind to the regex that recognizes it.
// Capture group 1 carries the payload (world id, room name or username);
// an optional group 2 carries the usr_… id.
type Pattern struct {
	Kind  models.RecordKind
	Regex *regexp.Regexp
}

// PatternSet is the ordered list of line patterns the tokenizer tries.
// Order matters: the first match wins.
type PatternSet struct {
	timestamp *regexp.Regexp
	patterns  []Pattern
}

// tsPrefix anchors every event pattern to a leading log timestamp.
const tsPrefix = `^(\d{4}\.\d{2}\.\d{2} \d{2}:\d{2}:\d{2})`

// DefaultPatterns returns the built-in VRChat client log patterns.
func DefaultPatterns() *PatternSet {
	return &PatternSet{
		timestamp: regexp.MustCompile(tsPrefix),
		patterns: []Pattern{
			{models.RecordInstanceEnter, regexp.MustCompile(`\[Behaviour\] Joining (wrld_[A-Za-z0-9\-:~_()]+)`)},
			{models.RecordRoomName, regexp.MustCompile(`\[Behaviour\] Joining or Creating Room: (.+?)\s*$`)},
			{models.RecordUserJoin, regexp.MustCompile(`OnPlayerJoined (.+?) \((usr_[a-f0-9\-]+)\)\s*$`)},
			{models.RecordUserJoinComplete, regexp.MustCompile(`OnPlayerJoinComplete (.+?)\s*$`)},
			{models.RecordUserLeave, regexp.MustCompile(`OnPlayerLeft (.+?)(?: \((usr_[a-f0-9\-]+)\))?\s*$`)},
			{models.RecordInstanceExit, regexp.MustCompile(`\[Behaviour\] OnLeftRoom`)},
		},
	}
}

// patternFile is the YAML schema for pattern override files.
// Each rule's regex is matched against the line after the timestamp
// prefix; group 1 is the payload, group 2 the optional user id.
type patternFile struct {
	Patterns []patternRule `yaml:"patterns"`
}

type patternRule struct {
	Kind  string `yaml:"kind"`
	Regex string `yaml:"regex"`
}

var validKinds = map[string]models.RecordKind{
	"instance_enter":     models.RecordInstanceEnter,
	"room_name":          models.RecordRoomName,
	"user_join":          models.RecordUserJoin,
	"user_join_complete": models.RecordUserJoinComplete,
	"user_leave":         models.RecordUserLeave,
	"instance_exit":      models.RecordInstanceExit,
}

// LoadPatternFile reads a YAML pattern file and returns a PatternSet
// built from it. Used to track VRChat client log format changes without
// a rebuild; the built-in defaults cover current clients.
func LoadPatternFile(path string) (*PatternSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pattern file: %w", err)
	}

	var pf patternFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parsing pattern file: %w", err)
	}
	if len(pf.Patterns) == 0 {
		return nil, fmt.Errorf("pattern file %s defines no patterns", path)
	}

	set := &PatternSet{timestamp: regexp.MustCompile(tsPrefix)}
	for i, rule := range pf.Patterns {
		kind, ok := validKinds[rule.Kind]
		if !ok {
			return nil, fmt.Errorf("pattern %d: unknown kind %q", i, rule.Kind)
		}
		re, err := regexp.Compile(rule.Regex)
		if err != nil {
			return nil, fmt.Errorf("pattern %d (%s): %w", i, rule.Kind, err)
		}
		set.patterns = append(set.patterns, Pattern{Kind: kind, Regex: re})
	}
	return set, nil
}
