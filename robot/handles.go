package robot

import (
	"sync"

	"github.com/pkg/errors"
)

// HandleKind - тип удалённого объекта, которому принадлежит дескриптор.
type HandleKind string

const (
	HandleController HandleKind = "controller"
	HandleArm        HandleKind = "arm"
	HandleVariable   HandleKind = "variable"
	HandleTask       HandleKind = "task"
	HandleFile       HandleKind = "file"
)

type trackedHandle struct {
	kind  HandleKind
	value uint32
	name  string
}

// HandleRegistry хранит дескрипторы одной сессии.
// Дескриптор нельзя перезаписать, пока прежний не освобождён.
type HandleRegistry struct {
	mu         sync.Mutex
	controller uint32
	arm        uint32
	mode       uint32
	adhoc      []trackedHandle
}

func (r *HandleRegistry) Controller() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.controller
}

func (r *HandleRegistry) Arm() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.arm
}

func (r *HandleRegistry) Mode() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

func (r *HandleRegistry) SetController(h uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.controller != 0 {
		return errors.Errorf("controller handle %d is still held", r.controller)
	}
	r.controller = h
	return nil
}

func (r *HandleRegistry) SetArm(h uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.arm != 0 {
		return errors.Errorf("arm handle %d is still held", r.arm)
	}
	r.arm = h
	return nil
}

func (r *HandleRegistry) SetMode(h uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mode != 0 {
		return errors.Errorf("mode variable handle %d is still held", r.mode)
	}
	r.mode = h
	return nil
}

// Track запоминает дескриптор переменной, задачи или файла.
func (r *HandleRegistry) Track(kind HandleKind, h uint32, name string) {
	if h == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adhoc = append(r.adhoc, trackedHandle{kind: kind, value: h, name: name})
}

// Untrack забывает дескриптор. Возвращает false, если он не отслеживался.
func (r *HandleRegistry) Untrack(kind HandleKind, h uint32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.adhoc) - 1; i >= 0; i-- {
		if r.adhoc[i].kind == kind && r.adhoc[i].value == h {
			r.adhoc = append(r.adhoc[:i], r.adhoc[i+1:]...)
			return true
		}
	}
	return false
}

// Lookup ищет последний отслеживаемый дескриптор по имени.
func (r *HandleRegistry) Lookup(kind HandleKind, name string) (uint32, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.adhoc) - 1; i >= 0; i-- {
		if r.adhoc[i].kind == kind && r.adhoc[i].name == name {
			return r.adhoc[i].value, true
		}
	}
	return 0, false
}

// Count возвращает число отслеживаемых дескрипторов указанного типа.
func (r *HandleRegistry) Count(kind HandleKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, h := range r.adhoc {
		if h.kind == kind {
			n++
		}
	}
	return n
}

func (r *HandleRegistry) take(kind HandleKind) []trackedHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	var taken, rest []trackedHandle
	for _, h := range r.adhoc {
		if h.kind == kind {
			taken = append(taken, h)
		} else {
			rest = append(rest, h)
		}
	}
	r.adhoc = rest
	return taken
}

// ReleaseKind освобождает все отслеживаемые дескрипторы типа kind в обратном порядке.
func (r *HandleRegistry) ReleaseKind(link Link, kind HandleKind, report func(op string, err error)) {
	handles := r.take(kind)
	for i := len(handles) - 1; i >= 0; i-- {
		release(link, handles[i], report)
	}
}

// ReleaseAll освобождает всё: рука, дополнительные дескрипторы, переменная режима, контроллер.
// Контроллер освобождается последним при любых ошибках на предыдущих шагах.
func (r *HandleRegistry) ReleaseAll(link Link, report func(op string, err error)) {
	r.mu.Lock()
	arm, mode, ctrl := r.arm, r.mode, r.controller
	adhoc := r.adhoc
	r.arm, r.mode, r.controller, r.adhoc = 0, 0, 0, nil
	r.mu.Unlock()

	if arm != 0 {
		if err := link.RobotRelease(arm); err != nil {
			report("RobotRelease", err)
		}
	}
	for i := len(adhoc) - 1; i >= 0; i-- {
		release(link, adhoc[i], report)
	}
	if mode != 0 {
		if err := link.VariableRelease(mode); err != nil {
			report("VariableRelease", err)
		}
	}
	if ctrl != 0 {
		if err := link.ControllerDisconnect(ctrl); err != nil {
			report("ControllerDisconnect", err)
		}
	}
}

// Reset забывает все дескрипторы без удалённых вызовов (после потери соединения).
func (r *HandleRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.arm, r.mode, r.controller, r.adhoc = 0, 0, 0, nil
}

func release(link Link, h trackedHandle, report func(op string, err error)) {
	var op string
	var err error
	switch h.kind {
	case HandleVariable:
		op, err = "VariableRelease", link.VariableRelease(h.value)
	case HandleTask:
		op, err = "TaskRelease", link.TaskRelease(h.value)
	case HandleFile:
		op, err = "FileRelease", link.FileRelease(h.value)
	default:
		return
	}
	if err != nil {
		report(op, err)
	}
}
