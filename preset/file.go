package preset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/whiteroom/multisong"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// FileRepository stores every preset as a .yml file in one directory. The
// file name is derived from the preset name; the id is stored inside the
// file. Hand-written files without an id get their file name as id, and
// files without a name get a title-cased name derived from the file name.
type FileRepository struct {
	dir   string
	mu    sync.Mutex
	caser cases.Caser
}

var nonFilenameChars = regexp.MustCompile("[^a-zA-Z0-9 _-]+")

func NewFileRepository(dir string) (*FileRepository, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating preset directory: %w", err)
	}
	return &FileRepository{dir: dir, caser: cases.Title(language.English)}, nil
}

func (r *FileRepository) Dir() string { return r.dir }

func (r *FileRepository) Load(ctx context.Context, id string) (multisong.Preset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, _, err := r.find(ctx, id)
	return p, err
}

// Save writes the preset. A preset with the same id is overwritten in place;
// otherwise a new file is created next to the existing ones.
func (r *FileRepository) Save(ctx context.Context, p multisong.Preset) error {
	if p.ID() == "" {
		return fmt.Errorf("saving preset %q: empty id", p.Name())
	}
	data, err := Marshal(p)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, path, err := r.find(ctx, p.ID())
	if errors.Is(err, ErrNotFound) {
		path, err = r.freePath(p.Name())
	}
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(r.dir, ".preset-*")
	if err != nil {
		return fmt.Errorf("saving preset %q: %w", p.Name(), err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("saving preset %q: %w", p.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("saving preset %q: %w", p.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("saving preset %q: %w", p.Name(), err)
	}
	return nil
}

// List returns the presets in the directory. Files that do not decode are
// skipped.
func (r *FileRepository) List(ctx context.Context) ([]Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var infos []Info
	err := r.walk(ctx, func(p multisong.Preset, path string) bool {
		infos = append(infos, infoOf(p))
		return true
	})
	if err != nil {
		return nil, err
	}
	sortInfos(infos)
	return infos, nil
}

func (r *FileRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, path, err := r.find(ctx, id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("deleting preset %q: %w", id, err)
	}
	return nil
}

func (r *FileRepository) find(ctx context.Context, id string) (found multisong.Preset, path string, err error) {
	err = r.walk(ctx, func(p multisong.Preset, filePath string) bool {
		if p.ID() == id {
			found, path = p, filePath
			return false
		}
		return true
	})
	if err != nil {
		return multisong.Preset{}, "", err
	}
	if path == "" {
		return multisong.Preset{}, "", fmt.Errorf("%q: %w", id, ErrNotFound)
	}
	return found, path, nil
}

func (r *FileRepository) walk(ctx context.Context, f func(p multisong.Preset, path string) bool) error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("reading preset directory: %w", err)
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.IsDir() || !isPresetFile(e.Name()) {
			continue
		}
		path := filepath.Join(r.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("reading preset %s: %w", e.Name(), err)
		}
		p, err := Unmarshal(data)
		if err != nil {
			continue
		}
		if p.ID() == "" || p.Name() == "" {
			p = r.fillFromFilename(p, e.Name())
		}
		if !f(p, path) {
			return nil
		}
	}
	return nil
}

func (r *FileRepository) fillFromFilename(p multisong.Preset, filename string) multisong.Preset {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	id, name := p.ID(), p.Name()
	if id == "" {
		id = base
	}
	if name == "" {
		name = r.caser.String(filenameToPresetName(base))
	}
	return multisong.Capture(id, name, p.Timestamp(), p.State())
}

func (r *FileRepository) freePath(name string) (string, error) {
	base := presetNameToFilename(name)
	if base == "" {
		base = "preset"
	}
	for i := 1; ; i++ {
		candidate := base
		if i > 1 {
			candidate += "_" + strconv.Itoa(i)
		}
		path := filepath.Join(r.dir, candidate+".yml")
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return path, nil
		} else if err != nil {
			return "", fmt.Errorf("saving preset %q: %w", name, err)
		}
	}
}

func filenameToPresetName(filename string) string {
	return strings.ReplaceAll(filename, "_", " ")
}

func presetNameToFilename(name string) string {
	name = nonFilenameChars.ReplaceAllString(name, "")
	return strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
}

func isPresetFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
