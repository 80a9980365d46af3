// Package ean extracts EAN barcode identifiers from product-photo filenames
// and plans canonical renames for a batch. Everything here is pure string
// work: no I/O, no shared state beyond a single call.
package ean

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

type Format string

const (
	FormatHyphen  Format = "hyphen"
	FormatEANOnly Format = "ean_only"
)

type Status string

const (
	StatusWillRename   Status = "will_rename"
	StatusKeepOriginal Status = "keep_original"
)

type Method string

const (
	MethodPattern Method = "pattern"
	MethodAI      Method = "ai"
)

type Extraction struct {
	EAN    string
	Number string
	Format Format
}

type AIResult struct {
	EAN        string  `json:"ean"`
	Confidence float64 `json:"confidence"`
}

type RenamePreview struct {
	OriginalName     string  `json:"originalName"`
	NewName          string  `json:"newName"`
	EAN              string  `json:"ean,omitempty"`
	Status           Status  `json:"status"`
	ExtractionMethod Method  `json:"extractionMethod,omitempty"`
	Confidence       float64 `json:"confidence,omitempty"`
}

type PreviewOptions struct {
	RemoveLeadingZeros bool
	AIResults          []AIResult
}

type File struct {
	OriginalName string
	Data         []byte
}

type Rename struct {
	OriginalName string `json:"originalName"`
	NewName      string `json:"newName"`
	Data         []byte `json:"-"`
	EAN          string `json:"ean,omitempty"`
	Success      bool   `json:"success"`
}

var (
	hyphenPattern  = regexp.MustCompile(`^(\d{12,13})-(\d+)$`)
	eanOnlyPattern = regexp.MustCompile(`^(\d{12,13})$`)
)

// RemoveLeadingZeros strips leading zeros from a digit string. An all-zero
// input collapses to "0", never to the empty string.
func RemoveLeadingZeros(value string) string {
	trimmed := strings.TrimLeft(value, "0")
	if trimmed == "" && value != "" {
		return "0"
	}
	return trimmed
}

// IsValid reports whether value is exactly 12 or 13 ASCII digits. Check-digit
// arithmetic is deliberately not verified.
func IsValid(value string) bool {
	if len(value) != 12 && len(value) != 13 {
		return false
	}
	for i := 0; i < len(value); i++ {
		if value[i] < '0' || value[i] > '9' {
			return false
		}
	}
	return true
}

// ExtractFromFilename parses a filename of the form "<ean>-<n>.<ext>" or
// "<ean>.<ext>". The hyphen form wins when both could apply. Returns false
// when the base name carries anything besides the expected digits.
func ExtractFromFilename(filename string) (Extraction, bool) {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))

	if m := hyphenPattern.FindStringSubmatch(base); m != nil {
		return Extraction{EAN: m[1], Number: m[2], Format: FormatHyphen}, true
	}
	if m := eanOnlyPattern.FindStringSubmatch(base); m != nil {
		return Extraction{EAN: m[1], Format: FormatEANOnly}, true
	}
	return Extraction{}, false
}

// PreviewRenames computes the proposed new name for every filename in order.
// counts tracks the highest sequence number seen per EAN across the whole
// batch, so AI-derived names for an EAN continue numbering after any
// pattern-derived names sharing it. AI results with confidence at or below
// 0.5 are discarded entirely.
func PreviewRenames(filenames []string, opts PreviewOptions) []RenamePreview {
	counts := make(map[string]int)
	out := make([]RenamePreview, 0, len(filenames))

	for i, name := range filenames {
		out = append(out, previewOne(name, aiResultAt(opts.AIResults, i), opts.RemoveLeadingZeros, counts))
	}
	return out
}

func previewOne(name string, ai *AIResult, stripZeros bool, counts map[string]int) RenamePreview {
	ext := filepath.Ext(name)

	if extraction, ok := ExtractFromFilename(name); ok {
		code := extraction.EAN
		if stripZeros {
			code = RemoveLeadingZeros(code)
		}

		var newName string
		if extraction.Format == FormatHyphen {
			if n, err := strconv.Atoi(extraction.Number); err == nil && n > counts[code] {
				counts[code] = n
			}
			newName = code + "-" + extraction.Number + ext
		} else {
			newName = code + ext
		}

		status := StatusWillRename
		if newName == name {
			status = StatusKeepOriginal
		}
		return RenamePreview{
			OriginalName:     name,
			NewName:          newName,
			EAN:              code,
			Status:           status,
			ExtractionMethod: MethodPattern,
		}
	}

	if ai != nil && ai.EAN != "" && ai.Confidence > 0.5 {
		code := ai.EAN
		if stripZeros {
			code = RemoveLeadingZeros(code)
		}
		next := counts[code] + 1
		counts[code] = next
		return RenamePreview{
			OriginalName:     name,
			NewName:          code + "-" + strconv.Itoa(next) + ext,
			EAN:              code,
			Status:           StatusWillRename,
			ExtractionMethod: MethodAI,
			Confidence:       ai.Confidence,
		}
	}

	preview := RenamePreview{
		OriginalName: name,
		NewName:      name,
		Status:       StatusKeepOriginal,
	}
	if ai != nil {
		// A low-confidence AI guess existed; record how we looked and how
		// sure the model was, but trust none of it.
		preview.ExtractionMethod = MethodAI
		preview.Confidence = ai.Confidence
	}
	return preview
}

// PlanRenames zips file buffers back onto the previews computed from their
// names. Success mirrors the will_rename status.
func PlanRenames(files []File, opts PreviewOptions) []Rename {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.OriginalName
	}

	previews := PreviewRenames(names, opts)

	out := make([]Rename, len(files))
	for i, p := range previews {
		out[i] = Rename{
			OriginalName: p.OriginalName,
			NewName:      p.NewName,
			Data:         files[i].Data,
			EAN:          p.EAN,
			Success:      p.Status == StatusWillRename,
		}
	}
	return out
}

func aiResultAt(results []AIResult, i int) *AIResult {
	if i < 0 || i >= len(results) {
		return nil
	}
	r := results[i]
	if r.EAN == "" && r.Confidence == 0 {
		return nil
	}
	return &r
}
