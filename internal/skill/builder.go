// Package skill packages the assistant skill bundle: a zip of the skill
// scripts plus a settings.yaml carrying the user's API credentials.
package skill

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v2"

	"beopsuny/internal/config"
)

// ErrNoOCCode indicates a bundle build without the mandatory law.go.kr OC
// code.
var ErrNoOCCode = errors.New("skill: oc code is required (the part of your open.law.go.kr email before the @)")

// bundleRoot is the top-level directory inside the zip.
const bundleRoot = "beopsuny"

// Empty data directories the skill expects at runtime.
var dataDirs = []string{"data/raw", "data/parsed", "data/bills"}

// BuildOptions describe one bundle build.
type BuildOptions struct {
	// SourceDir holds SKILL.md and a scripts/ subdirectory.
	SourceDir string
	// OutputPath is the zip to write.
	OutputPath string

	OCCode         string
	AssemblyAPIKey string

	// Force overwrites an existing output zip.
	Force bool
}

// Build writes the skill bundle zip. The generated settings.yaml embeds
// the given credentials, so the bundle must not be shared.
func Build(opts BuildOptions) error {
	if strings.TrimSpace(opts.OCCode) == "" {
		return ErrNoOCCode
	}

	if _, err := os.Stat(opts.SourceDir); err != nil {
		return fmt.Errorf("skill source dir: %w", err)
	}

	if !opts.Force {
		if _, err := os.Stat(opts.OutputPath); err == nil {
			return fmt.Errorf("output %s already exists (use -force to overwrite)", opts.OutputPath)
		}
	}

	settings, err := renderSettings(opts.OCCode, opts.AssemblyAPIKey)
	if err != nil {
		return err
	}

	out, err := os.Create(opts.OutputPath)
	if err != nil {
		return fmt.Errorf("create bundle: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)

	if err := addFileIfPresent(zw, filepath.Join(opts.SourceDir, "SKILL.md"), bundleRoot+"/SKILL.md"); err != nil {
		return err
	}

	if err := writeEntry(zw, bundleRoot+"/config/settings.yaml", settings); err != nil {
		return err
	}

	if err := addScripts(zw, filepath.Join(opts.SourceDir, "scripts")); err != nil {
		return err
	}

	for _, dir := range dataDirs {
		if err := writeEntry(zw, bundleRoot+"/"+dir+"/.gitkeep", nil); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize bundle: %w", err)
	}

	log.Info("Skill bundle written", "path", opts.OutputPath)
	log.Warn("The bundle embeds your personal OC code, do not share it")
	return nil
}

// renderSettings produces the bundle settings.yaml: the embedded defaults
// with the user's credentials injected.
func renderSettings(ocCode, assemblyKey string) ([]byte, error) {
	s, err := config.Defaults()
	if err != nil {
		return nil, err
	}
	s.OCCode = strings.TrimSpace(ocCode)
	s.AssemblyAPIKey = strings.TrimSpace(assemblyKey)

	data, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("render settings: %w", err)
	}
	return data, nil
}

func addScripts(zw *zip.Writer, scriptsDir string) error {
	entries, err := os.ReadDir(scriptsDir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("No scripts directory in skill source", "dir", scriptsDir)
			return nil
		}
		return fmt.Errorf("read scripts dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || skipScript(entry.Name()) {
			continue
		}
		src := filepath.Join(scriptsDir, entry.Name())
		if err := addFile(zw, src, bundleRoot+"/scripts/"+entry.Name()); err != nil {
			return err
		}
	}
	return nil
}

func skipScript(name string) bool {
	return strings.HasPrefix(name, ".") ||
		strings.HasSuffix(name, ".pyc") ||
		name == "__pycache__"
}

func addFileIfPresent(zw *zip.Writer, src, dest string) error {
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", src, err)
	}
	return addFile(zw, src, dest)
}

func addFile(zw *zip.Writer, src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	w, err := zw.Create(dest)
	if err != nil {
		return fmt.Errorf("add %s: %w", dest, err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}

func writeEntry(zw *zip.Writer, dest string, data []byte) error {
	w, err := zw.Create(dest)
	if err != nil {
		return fmt.Errorf("add %s: %w", dest, err)
	}
	if len(data) > 0 {
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("write %s: %w", dest, err)
		}
	}
	return nil
}
