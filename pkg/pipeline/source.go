// Package pipeline drives a full filtering run: it loads the reference corpus,
// filters every configured source into kept and flagged outputs and finally
// compares two of the filtered outputs.
package pipeline

import (
	"fmt"

	"github.com/japaniel/mozcfilter/pkg/compare"
	"github.com/japaniel/mozcfilter/pkg/errors"
	"github.com/japaniel/mozcfilter/pkg/filter"
)

// Source is one candidate file and the rule set applied to it.
type Source struct {
	Name          string        `mapstructure:"name" yaml:"name"`
	Input         string        `mapstructure:"input" yaml:"input"`
	Output        string        `mapstructure:"output" yaml:"output"`
	FlaggedOutput string        `mapstructure:"flagged_output" yaml:"flagged_output"`
	Filter        filter.Config `mapstructure:"filter" yaml:"filter"`
}

// Validate checks that the source has a name, paths and a valid rule set.
func (s Source) Validate() error {
	if s.Name == "" {
		return errors.NewConfigError("sources.name", s.Name, "must not be empty")
	}
	if s.Input == "" {
		return errors.NewConfigError("sources."+s.Name+".input", s.Input, "must not be empty")
	}
	if s.Output == "" {
		return errors.NewConfigError("sources."+s.Name+".output", s.Output, "must not be empty")
	}
	if err := s.Filter.Validate(); err != nil {
		return fmt.Errorf("source %s: %w", s.Name, err)
	}
	return nil
}

// ComparisonSpec names the two filtered outputs to compare and where the
// partitions go.
type ComparisonSpec struct {
	Left  string        `mapstructure:"left" yaml:"left"`
	Right string        `mapstructure:"right" yaml:"right"`
	Paths compare.Paths `mapstructure:"paths" yaml:"paths"`
}

// Validate checks that both inputs are set.
func (c ComparisonSpec) Validate() error {
	if c.Left == "" || c.Right == "" {
		return errors.NewConfigError("comparison", c.Left+" vs "+c.Right, "left and right must both be set")
	}
	return nil
}

// wikiRules is shared by the two bulk web-derived sources.
var wikiRules = filter.Config{
	RemoveExclamation: true,
	ExtraFilter:       true,
	RequireFilter:     true,
	SkipLongEntries:   true,
	SkipIdentical:     true,
}

// DefaultSources returns the four standard sources and their rule sets.
func DefaultSources() []Source {
	neologd := wikiRules
	neologd.Exclusions = []filter.Exclusion{{Surface: "明倫養賢堂", Reading: "ようけんどう"}}
	return []Source{
		{
			Name:          "place",
			Input:         "./dic/place.txt",
			Output:        "./filtered_place.txt",
			FlaggedOutput: "./filtered_place_not_same.txt",
			Filter:        filter.Config{CleanLast: true},
		},
		{
			Name:          "names",
			Input:         "./dic/names.txt",
			Output:        "./filtered_names.txt",
			FlaggedOutput: "./filtered_names_not_same.txt",
		},
		{
			Name:          "wiki",
			Input:         "./dic/wiki.txt",
			Output:        "./filtered_wiki.txt",
			FlaggedOutput: "./filtered_wiki_not_same.txt",
			Filter:        wikiRules,
		},
		{
			Name:          "neologd",
			Input:         "./dic/neologd.txt",
			Output:        "./filtered_neologd.txt",
			FlaggedOutput: "./filtered_neologd_not_same.txt",
			Filter:        neologd,
		},
	}
}

// DefaultComparison compares the filtered wiki and neologd outputs.
func DefaultComparison() ComparisonSpec {
	return ComparisonSpec{
		Left:  "./filtered_wiki.txt",
		Right: "./filtered_neologd.txt",
		Paths: compare.Paths{
			Common:    "./wiki_neologd_common.txt",
			LeftOnly:  "./only_wiki.txt",
			RightOnly: "./only_neologd.txt",
		},
	}
}
