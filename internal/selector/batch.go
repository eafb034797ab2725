package selector

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultSuffixes are the script files a batch repair looks at.
var DefaultSuffixes = []string{".spec.js", ".test.js", ".node.js"}

// locatorCall matches the selector argument of locator('...') and
// waitForSelector('...') call sites, either quote style. The selector may not
// itself contain a quote.
var locatorCall = regexp.MustCompile(`\b(locator|waitForSelector)\((['"])([^'"]+)(['"])(\s*[,)])`)

const repairConcurrency = 4

type Fix struct {
	File     string `json:"file,omitempty"`
	Original string `json:"original"`
	Fixed    string `json:"fixed"`
}

type FileResult struct {
	Path  string `json:"path"`
	Fixes []Fix  `json:"fixes,omitempty"`
	Error string `json:"error,omitempty"`
}

type Summary struct {
	Processed int          `json:"processed"`
	Changed   int          `json:"changed"`
	Failed    int          `json:"failed"`
	Files     []FileResult `json:"files"`
}

// Fixes flattens the fixes of all files.
func (s *Summary) Fixes() []Fix {
	var out []Fix
	for _, f := range s.Files {
		out = append(out, f.Fixes...)
	}
	return out
}

// RepairScript applies Repair to the selector of every locator and
// waitForSelector call in content. Selectors are decoded from their JS
// string form before repair and re-encoded afterwards. Call sites that need no repair are left byte for
// byte as they were.
func RepairScript(content string) (string, []Fix) {
	var fixes []Fix
	out := locatorCall.ReplaceAllStringFunc(content, func(call string) string {
		m := locatorCall.FindStringSubmatch(call)
		fn, opening, literal, closing, rest := m[1], m[2], m[3], m[4], m[5]

		decoded := strings.ReplaceAll(literal, `\\`, `\`)
		repaired := Repair(decoded)
		if repaired == decoded {
			return call
		}
		fixes = append(fixes, Fix{Original: decoded, Fixed: repaired})
		return fn + "(" + opening + strings.ReplaceAll(repaired, `\`, `\\`) + closing + rest
	})
	return out, fixes
}

// RepairFile rewrites path in place when RepairScript changed anything.
func RepairFile(fs afero.Fs, path string) ([]Fix, error) {
	content, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	repaired, fixes := RepairScript(string(content))
	if len(fixes) == 0 {
		return nil, nil
	}

	mode := os.FileMode(0o644)
	if info, err := fs.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := afero.WriteFile(fs, path, []byte(repaired), mode); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}
	for i := range fixes {
		fixes[i].File = path
	}
	return fixes, nil
}

// RepairFiles repairs every file under root whose name ends with one of
// suffixes. A file that cannot be read or written is reported in the
// summary and does not stop the others.
func RepairFiles(ctx context.Context, fs afero.Fs, root string, suffixes []string, logger *zap.Logger) (*Summary, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(suffixes) == 0 {
		suffixes = DefaultSuffixes
	}

	paths, err := findScripts(fs, root, suffixes)
	if err != nil {
		return nil, err
	}

	results := make([]FileResult, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(repairConcurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i].Path = path
			fixes, err := RepairFile(fs, path)
			if err != nil {
				logger.Warn("Selector repair failed", zap.String("file", path), zap.Error(err))
				results[i].Error = err.Error()
				return nil
			}
			for _, fix := range fixes {
				logger.Info("Fixed selector",
					zap.String("file", path),
					zap.String("original", fix.Original),
					zap.String("fixed", fix.Fixed))
			}
			results[i].Fixes = fixes
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &Summary{Processed: len(results), Files: results}
	for _, r := range results {
		switch {
		case r.Error != "":
			summary.Failed++
		case len(r.Fixes) > 0:
			summary.Changed++
		}
	}
	logger.Info("Selector repair finished",
		zap.String("root", root),
		zap.Int("processed", summary.Processed),
		zap.Int("changed", summary.Changed),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

func findScripts(fs afero.Fs, root string, suffixes []string) ([]string, error) {
	var paths []string
	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		for _, suffix := range suffixes {
			if strings.HasSuffix(info.Name(), suffix) {
				paths = append(paths, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	return paths, nil
}
