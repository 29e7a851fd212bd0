// Package fsops holds the file helpers and the dialog contract the shell
// exposes to the windowing layer. Native picker dialogs themselves live in
// the OS-specific shell; this package only defines what they must provide
// and the pure file operations behind them.
package fsops

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrCanceled reports that the user dismissed a dialog without choosing.
// Distinct from I/O failure on purpose: callers surface it as a non-event,
// not an error toast.
var ErrCanceled = errors.New("selection canceled")

// Filter is one extension filter entry in a file dialog.
type Filter struct {
	Name       string   `json:"name"`
	Extensions []string `json:"extensions"`
}

// Filter sets matching the pickers the Dipper UI offers.
var (
	AudioFilters = []Filter{
		{Name: "Audio Files", Extensions: []string{"wav", "mp3", "flac", "ogg", "m4a"}},
		{Name: "All Files", Extensions: []string{"*"}},
	}
	PredictionFilters = []Filter{
		{Name: "Prediction Files", Extensions: []string{"csv", "pkl"}},
		{Name: "CSV Files", Extensions: []string{"csv"}},
		{Name: "PKL Files", Extensions: []string{"pkl"}},
		{Name: "All Files", Extensions: []string{"*"}},
	}
	TextFilters = []Filter{
		{Name: "Text Files", Extensions: []string{"txt", "csv"}},
		{Name: "All Files", Extensions: []string{"*"}},
	}
	JSONFilters = []Filter{
		{Name: "JSON Files", Extensions: []string{"json"}},
		{Name: "All Files", Extensions: []string{"*"}},
	}
	ModelFilters = []Filter{
		{Name: "All Files", Extensions: []string{"*"}},
	}
)

// SaveFilters picks the filter set for a save dialog from the suggested
// file name's extension: .json names get JSON filters, everything else CSV.
func SaveFilters(defaultName string) []Filter {
	if strings.Contains(strings.ToLower(defaultName), ".json") {
		return JSONFilters
	}
	return []Filter{
		{Name: "CSV Files", Extensions: []string{"csv"}},
		{Name: "All Files", Extensions: []string{"*"}},
	}
}

// Dialogs is implemented by the native windowing layer. Every method
// returns ErrCanceled when the user dismisses without selecting.
type Dialogs interface {
	PickFiles(title string, filters []Filter) ([]string, error)
	PickFolder(title string) (string, error)
	PickSave(defaultName string, filters []Filter) (string, error)
}

// Unavailable is the Dialogs stub used when no native dialog layer is
// registered (headless runs, tests).
type Unavailable struct{}

var errNoDialogs = errors.New("no native dialog layer registered")

func (Unavailable) PickFiles(string, []Filter) ([]string, error) { return nil, errNoDialogs }
func (Unavailable) PickFolder(string) (string, error)            { return "", errNoDialogs }
func (Unavailable) PickSave(string, []Filter) (string, error)    { return "", errNoDialogs }

// WriteFile writes content to path, creating the parent directory when
// missing. Used by the UI's export actions.
func WriteFile(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// UniqueName returns a folder name under base that does not collide with an
// existing entry, appending _1, _2, ... to name until one is free. base
// must already exist.
func UniqueName(base, name string) (string, error) {
	info, err := os.Stat(base)
	if err != nil {
		return "", fmt.Errorf("base path does not exist: %s", base)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("base path is not a directory: %s", base)
	}
	candidate := name
	for counter := 1; ; counter++ {
		if _, err := os.Stat(filepath.Join(base, candidate)); os.IsNotExist(err) {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s_%d", name, counter)
	}
}
