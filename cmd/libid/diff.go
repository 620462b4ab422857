// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/aleutian-labs/libid/detect"
	"github.com/aleutian-labs/libid/internal/resultdiff"
)

var diffStatOnly bool

var diffCmd = &cobra.Command{
	Use:   "diff OLD.json NEW.json",
	Short: "Show what changed between two detection Result documents",
	Args:  cobra.ExactArgs(2),
	RunE:  runDiffCommand,
}

func init() {
	diffCmd.Flags().BoolVar(&diffStatOnly, "stat", false, "print only the added/removed line counts")
}

func runDiffCommand(cmd *cobra.Command, args []string) error {
	oldPath, newPath := args[0], args[1]

	oldResult, err := loadResult(oldPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", oldPath, err)
	}
	newResult, err := loadResult(newPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", newPath, err)
	}

	text, fileDiff, err := resultdiff.Diff(oldPath, oldResult, newPath, newResult)
	if err != nil {
		return fmt.Errorf("computing diff: %w", err)
	}
	if text == "" {
		fmt.Println("no changes")
		return nil
	}

	stat := resultdiff.CountChanges(fileDiff)
	showFull := !diffStatOnly
	if !diffStatOnly && isatty.IsTerminal(os.Stdout.Fd()) {
		showFull, err = confirmShowFullDiff(stat)
		if err != nil {
			return err
		}
	}

	fmt.Printf("%d addition(s), %d removal(s)\n", stat.Added, stat.Removed)
	if showFull {
		fmt.Println(text)
	}
	return nil
}

func confirmShowFullDiff(stat resultdiff.Stat) (bool, error) {
	show := true
	err := huh.NewConfirm().
		Title(fmt.Sprintf("%d addition(s), %d removal(s), show the full diff?", stat.Added, stat.Removed)).
		Value(&show).
		Run()
	if err != nil {
		return false, fmt.Errorf("prompting: %w", err)
	}
	return show, nil
}

func loadResult(path string) (detect.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return detect.Result{}, err
	}
	var r detect.Result
	if err := json.Unmarshal(data, &r); err != nil {
		return detect.Result{}, fmt.Errorf("decoding: %w", err)
	}
	return r, nil
}
