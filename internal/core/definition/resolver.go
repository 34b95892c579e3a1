package definition

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/yndnr/autosave-go/internal/core/domain"
)

// MaxIncludeDepth bounds include nesting.
const MaxIncludeDepth = 10

// Definition is a resolved point list.
type Definition struct {
	Name      string
	Points    []string
	PathPoint string
	NamePoint string
	Label     string
	// Files lists every file read, the top-level file first.
	Files []string
}

// Resolver turns a definition name plus macro text into a Definition.
type Resolver interface {
	Resolve(name, macros string) (*Definition, error)
}

// FileResolver reads definitions from a search path.
type FileResolver struct {
	searchPath []string
}

// NewFileResolver creates a resolver. An empty search path means the
// current directory.
func NewFileResolver(searchPath ...string) *FileResolver {
	if len(searchPath) == 0 {
		searchPath = []string{"."}
	}
	return &FileResolver{searchPath: searchPath}
}

// SearchPath returns the directories searched, in order.
func (r *FileResolver) SearchPath() []string {
	return append([]string(nil), r.searchPath...)
}

// Locate returns the path of the first file matching name.
func (r *FileResolver) Locate(name string) (string, error) {
	if filepath.IsAbs(name) {
		if _, err := os.Stat(name); err != nil {
			return "", domain.ErrDefinitionNotFound.WithDetails(name).Wrap(err)
		}
		return name, nil
	}
	for _, dir := range r.searchPath {
		p := filepath.Join(dir, name)
		st, err := os.Stat(p)
		if err == nil && !st.IsDir() {
			return p, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", domain.ErrDefinitionNotFound.WithDetails(name).Wrap(err)
		}
	}
	return "", domain.ErrDefinitionNotFound.WithDetailsf("%s not in %s", name, strings.Join(r.searchPath, ":"))
}

// Resolve reads name, expanding includes and macros.
func (r *FileResolver) Resolve(name, macros string) (*Definition, error) {
	scope, err := ParseMacros(macros)
	if err != nil {
		return nil, err
	}
	def := &Definition{Name: name}
	if err := r.load(def, name, scope, nil); err != nil {
		return nil, err
	}
	return def, nil
}

func (r *FileResolver) load(def *Definition, name string, scope Macros, stack []string) error {
	if len(stack) >= MaxIncludeDepth {
		return domain.ErrDefinitionParse.WithDetailsf("includes nested deeper than %d at %s", MaxIncludeDepth, name)
	}
	path, err := r.Locate(name)
	if err != nil {
		if len(stack) > 0 {
			return fmt.Errorf("definition: include from %s: %w", stack[len(stack)-1], err)
		}
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	for _, s := range stack {
		if s == abs {
			return domain.ErrDefinitionParse.WithDetailsf("include cycle through %s", abs)
		}
	}
	stack = append(stack, abs)
	def.Files = append(def.Files, path)

	f, err := os.Open(path)
	if err != nil {
		return domain.ErrDefinitionNotFound.WithDetails(path).Wrap(err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line, err = scope.Expand(line)
		if err != nil {
			return fmt.Errorf("definition: %s:%d: %w", path, lineNo, err)
		}

		keyword, rest, _ := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)
		switch keyword {
		case "file":
			incName, incMacros, _ := strings.Cut(rest, " ")
			if incName == "" {
				return domain.ErrDefinitionParse.WithDetailsf("%s:%d: file needs a name", path, lineNo)
			}
			child, err := ParseMacros(incMacros)
			if err != nil {
				return fmt.Errorf("definition: %s:%d: %w", path, lineNo, err)
			}
			if err := r.load(def, incName, scope.With(child), stack); err != nil {
				return err
			}
		case "@path":
			def.PathPoint = rest
		case "@name":
			def.NamePoint = rest
		case "@label":
			def.Label = rest
		default:
			if strings.HasPrefix(keyword, "@") {
				return domain.ErrDefinitionParse.WithDetailsf("%s:%d: unknown directive %s", path, lineNo, keyword)
			}
			// Anything after the point name is ignored.
			def.Points = append(def.Points, keyword)
		}
	}
	if err := sc.Err(); err != nil {
		return domain.ErrDefinitionParse.WithDetails(path).Wrap(err)
	}
	return nil
}
