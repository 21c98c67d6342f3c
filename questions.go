/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/Seednode/graffiti/games/graffiti"
)

var errNoQuestions = errors.New("no questions found")

// loadQuestions reads a question bank from a yaml, json or toml file with a
// top-level "questions" list. An empty path means the built-in bank.
func loadQuestions(path string) ([]graffiti.Question, error) {
	if path == "" {
		return graffiti.DefaultQuestions(), nil
	}

	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("questions %s: %w", path, err)
	}

	var qs []graffiti.Question
	if err := v.UnmarshalKey("questions", &qs); err != nil {
		return nil, fmt.Errorf("questions %s: %w", path, err)
	}
	if len(qs) == 0 {
		return nil, fmt.Errorf("questions %s: %w", path, errNoQuestions)
	}

	var err error
	for i, q := range qs {
		if verr := q.Validate(); verr != nil {
			err = multierr.Append(err, fmt.Errorf("question %d: %w", i+1, verr))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("questions %s: %w", path, err)
	}

	return qs, nil
}
