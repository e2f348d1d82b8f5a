package robot

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/iwtcode/densoAdapter/internal/metrics"
	"github.com/iwtcode/densoAdapter/models"
	"github.com/pkg/errors"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

const (
	listingExt   = ".lst"
	dirSeparator = `\`
)

// archiveFrame - локальная копия каталога контроллера и его ещё не обработанные записи.
type archiveFrame struct {
	dir     string
	pending []uint32
}

// SaveAllProgramFiles копирует дерево программ контроллера в каталог dir.
// Файлы *.lst пропускаются, имена с "\" считаются каталогами. Обход в глубину в том порядке,
// в котором контроллер перечисляет записи: в каталог заходим сразу, как только до него дошли.
// Ошибка на одном элементе журналируется, обход продолжается; уже записанные файлы
// остаются на диске. Возвращается первая ошибка.
func (s *Session) SaveAllProgramFiles(dir string) (*models.ArchiveReport, error) {
	const op = "SaveAllProgramFiles"
	report := &models.ArchiveReport{Root: dir}

	link, err := s.requireLink(op)
	if err != nil {
		return report, err
	}

	var first error
	fail := func(err error) {
		f := s.handleFault(op, err)
		if first == nil {
			first = f
		}
	}
	defer s.handles.ReleaseKind(link, HandleFile, func(op string, err error) { fail(err) })

	enter := func(parent uint32, dir string) *archiveFrame {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fail(errors.Wrapf(err, "create %s", dir))
			return nil
		}
		children, err := s.openChildren(link, parent)
		if err != nil {
			fail(err)
			return nil
		}
		return &archiveFrame{dir: dir, pending: children}
	}

	var stack []*archiveFrame
	if root := enter(0, dir); root != nil {
		stack = append(stack, root)
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if len(top.pending) == 0 {
			stack = stack[:len(stack)-1]
			continue
		}
		h := top.pending[0]
		top.pending = top.pending[1:]

		name, err := link.FileGetName(h)
		if err != nil {
			fail(err)
			continue
		}
		if strings.HasSuffix(strings.ToLower(name), listingExt) {
			report.Skipped = append(report.Skipped, filepath.Join(top.dir, name))
			continue
		}

		if strings.Contains(name, dirSeparator) {
			local, err := localName(strings.TrimRight(name, dirSeparator))
			if err != nil {
				fail(err)
				continue
			}
			child := filepath.Join(top.dir, local)
			report.Directories = append(report.Directories, child)
			if frame := enter(h, child); frame != nil {
				stack = append(stack, frame)
			}
			continue
		}

		local, err := localName(name)
		if err != nil {
			fail(err)
			continue
		}
		path := filepath.Join(top.dir, local)
		if err := s.saveFile(link, h, path); err != nil {
			fail(err)
			continue
		}
		report.Files = append(report.Files, path)
		metrics.ArchivedFiles.Inc()
	}

	s.log.WithField("dir", dir).Infof("archived %d files in %d directories, skipped %d",
		len(report.Files), len(report.Directories), len(report.Skipped))
	return report, first
}

// openChildren перечисляет записи каталога и получает дескриптор каждой.
func (s *Session) openChildren(link Link, parent uint32) ([]uint32, error) {
	var names []string
	var err error
	if parent == 0 {
		names, err = link.ControllerGetFileNames(s.handles.Controller(), "")
	} else {
		names, err = link.FileGetFileNames(parent, "")
	}
	if err != nil {
		return nil, err
	}

	handles := make([]uint32, 0, len(names))
	for _, name := range names {
		var h uint32
		if parent == 0 {
			h, err = link.ControllerGetFile(s.handles.Controller(), name, optionIfNotMember)
		} else {
			h, err = link.FileGetFile(parent, name, optionIfNotMember)
		}
		if err != nil {
			return handles, errors.Wrapf(err, "open %s", name)
		}
		s.handles.Track(HandleFile, h, name)
		handles = append(handles, h)
	}
	return handles, nil
}

// saveFile пишет содержимое файла в Shift-JIS без преобразования концов строк.
// Символ, которого нет в Shift-JIS, - ошибка: файл не пишется.
func (s *Session) saveFile(link Link, h uint32, path string) error {
	v, err := link.FileGetValue(h)
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	data, _, err := transform.String(japanese.ShiftJIS.NewEncoder(), asText(v))
	if err != nil {
		return errors.Wrapf(err, "encode %s", path)
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

// localName не даёт имени с контроллера выйти за пределы каталога архива.
func localName(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", errors.Errorf("unsafe file name %q", name)
	}
	return name, nil
}
