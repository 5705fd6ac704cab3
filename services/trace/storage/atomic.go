// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storage holds the export backends for attribution results and the
// file helpers they share.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrOutput marks a failure to produce an output file or database. The
// command reports it with its own exit code.
var ErrOutput = errors.New("output failed")

var errIsDirectory = errors.New("is a directory")

// DefaultFileMode is the permission given to a new output file. A file that
// already exists at the destination keeps its own permission bits.
const DefaultFileMode os.FileMode = 0o644

// rename is swapped in tests to fail a chosen step of a commit.
var rename = os.Rename

// Batch stages output files next to their destinations and moves them into
// place together.
//
// Description:
//
//	Stage fills a temp file in the destination directory. Commit renames
//	every staged file over its destination in staging order; if one rename
//	fails, the destinations already replaced are restored from backups and
//	new ones are removed, so a run either produces every output or none.
//	Discard removes staged temp files that were never committed.
//
// Thread Safety: Not safe for concurrent use.
type Batch struct {
	staged []stagedFile
}

type stagedFile struct {
	path     string
	tempPath string
}

// committed is a staged file that has been renamed into place. backup names
// the previous destination file, if there was one.
type committed struct {
	stagedFile
	backup string
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{}
}

// Len returns the number of staged files.
func (b *Batch) Len() int {
	return len(b.staged)
}

// Stage prepares path through a temporary file in the same directory.
//
// Inputs:
//
//	path - Destination path. Must not be a directory.
//	write - Fills the temp file. It may reopen or replace the file by name.
//
// Outputs:
//
//	error - Wraps ErrOutput together with the underlying cause. Nothing is
//	        staged and no temp file is left on error.
func (b *Batch) Stage(path string, write func(tmpPath string) error) error {
	mode, err := destinationMode(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrOutput, path, err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file for %s: %w", ErrOutput, path, err)
	}
	tempPath := tempFile.Name()
	if err := tempFile.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("%w: close temp file for %s: %w", ErrOutput, path, err)
	}

	if err := write(tempPath); err != nil {
		_ = os.Remove(tempPath)
		if errors.Is(err, ErrOutput) {
			return err
		}
		return fmt.Errorf("%w: write %s: %w", ErrOutput, path, err)
	}

	// CreateTemp makes the file 0600 and write may have replaced it.
	if err := os.Chmod(tempPath, mode); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("%w: chmod %s: %w", ErrOutput, path, err)
	}

	b.staged = append(b.staged, stagedFile{path: path, tempPath: tempPath})
	return nil
}

// StageWriter stages path from a streaming writer function.
func (b *Batch) StageWriter(path string, write func(w io.Writer) error) error {
	return b.Stage(path, func(tmpPath string) error {
		f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_TRUNC, 0)
		if err != nil {
			return err
		}
		if err := write(f); err != nil {
			f.Close()
			return err
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return fmt.Errorf("sync: %w", err)
		}
		return f.Close()
	})
}

// Commit renames every staged file into place.
//
// Outputs:
//
//	error - Wraps ErrOutput. On error every destination is back in the
//	        state it had before Commit and no temp file remains.
func (b *Batch) Commit() error {
	staged := b.staged
	b.staged = nil

	done := make([]committed, 0, len(staged))
	for i, s := range staged {
		c := committed{stagedFile: s}
		if _, err := os.Lstat(s.path); err == nil {
			c.backup = s.tempPath + ".bak"
			if err := rename(s.path, c.backup); err != nil {
				restore(done)
				removeTemps(staged[i:])
				return fmt.Errorf("%w: back up %s: %w", ErrOutput, s.path, err)
			}
		}
		if err := rename(s.tempPath, s.path); err != nil {
			if c.backup != "" {
				_ = rename(c.backup, s.path)
			}
			restore(done)
			removeTemps(staged[i:])
			return fmt.Errorf("%w: rename %s: %w", ErrOutput, s.path, err)
		}
		done = append(done, c)
	}

	for _, c := range done {
		if c.backup != "" {
			_ = os.Remove(c.backup)
		}
	}
	return nil
}

// Discard removes every staged temp file. It is a no-op after Commit.
func (b *Batch) Discard() {
	removeTemps(b.staged)
	b.staged = nil
}

// restore undoes committed renames, newest first, so a path staged twice
// ends up with its original content.
func restore(done []committed) {
	for i := len(done) - 1; i >= 0; i-- {
		c := done[i]
		_ = os.Remove(c.path)
		if c.backup != "" {
			_ = rename(c.backup, c.path)
		}
	}
}

func removeTemps(staged []stagedFile) {
	for _, s := range staged {
		_ = os.Remove(s.tempPath)
	}
}

func destinationMode(path string) (os.FileMode, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return DefaultFileMode, nil
	case err != nil:
		return 0, err
	case info.IsDir():
		return 0, errIsDirectory
	default:
		return info.Mode().Perm(), nil
	}
}
