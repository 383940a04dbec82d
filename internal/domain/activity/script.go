package activity

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

const defaultScriptTimeout = 250 * time.Millisecond

// Script runs a user-supplied JavaScript detector. The source must define
//
//	function detect(prev, cur) { ... }
//
// where prev and cur are {title, html} objects. Returning a falsy value means
// no activity, true means one new item, and an object may set title, body and
// count. Each call gets a fresh VM with no timers or module loading.
type Script struct {
	program *goja.Program
	timeout time.Duration
	logger  *zap.Logger
}

// NewScript compiles source and checks that it defines detect.
func NewScript(source string, timeout time.Duration, logger *zap.Logger) (*Script, error) {
	if strings.TrimSpace(source) == "" {
		return nil, errors.New("activity: empty detector script")
	}
	program, err := goja.Compile("detector.js", source, true)
	if err != nil {
		return nil, fmt.Errorf("compile detector: %w", err)
	}
	if timeout <= 0 {
		timeout = defaultScriptTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Script{program: program, timeout: timeout, logger: logger}
	vm := s.newVM()
	if _, err := vm.RunProgram(program); err != nil {
		return nil, fmt.Errorf("load detector: %w", err)
	}
	if _, ok := goja.AssertFunction(vm.Get("detect")); !ok {
		return nil, errors.New("activity: detector script does not define detect(prev, cur)")
	}
	return s, nil
}

// LoadScript reads a detector from path.
func LoadScript(path string, timeout time.Duration, logger *zap.Logger) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewScript(string(data), timeout, logger)
}

// Detect runs the script. Errors and timeouts count as no activity.
func (s *Script) Detect(prev, cur Snapshot) (Signal, bool) {
	sig, ok, err := s.run(prev, cur)
	if err != nil {
		s.logger.Warn("Detector script failed", zap.Error(err))
		return Signal{}, false
	}
	return sig, ok
}

func (s *Script) run(prev, cur Snapshot) (Signal, bool, error) {
	vm := s.newVM()

	timer := time.AfterFunc(s.timeout, func() {
		vm.Interrupt("execution timeout exceeded")
	})
	defer timer.Stop()

	if _, err := vm.RunProgram(s.program); err != nil {
		return Signal{}, false, err
	}
	detect, ok := goja.AssertFunction(vm.Get("detect"))
	if !ok {
		return Signal{}, false, errors.New("detect is not a function")
	}

	val, err := detect(goja.Undefined(), vm.ToValue(snapshotObject(prev)), vm.ToValue(snapshotObject(cur)))
	if err != nil {
		return Signal{}, false, err
	}
	sig, ok := exportSignal(val)
	return sig, ok, nil
}

func (s *Script) newVM() *goja.Runtime {
	vm := goja.New()
	vm.SetMaxCallStackSize(1024)

	// Remove dangerous globals
	vm.Set("require", goja.Undefined())
	vm.Set("process", goja.Undefined())
	vm.Set("module", goja.Undefined())
	vm.Set("exports", goja.Undefined())

	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	vm.Set("setTimeout", noop)
	vm.Set("setInterval", noop)

	console := vm.NewObject()
	_ = console.Set("log", func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		s.logger.Debug("detector", zap.String("message", strings.Join(parts, " ")))
		return goja.Undefined()
	})
	vm.Set("console", console)
	return vm
}

func snapshotObject(s Snapshot) map[string]any {
	return map[string]any{"title": s.Title, "html": s.HTML}
}

func exportSignal(val goja.Value) (Signal, bool) {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return Signal{}, false
	}

	switch v := val.Export().(type) {
	case bool:
		if !v {
			return Signal{}, false
		}
		return signalFor(1), true
	case map[string]any:
		count := 1
		switch c := v["count"].(type) {
		case int64:
			count = int(c)
		case float64:
			count = int(c)
		}
		if count <= 0 {
			return Signal{}, false
		}
		sig := signalFor(count)
		if t, ok := v["title"].(string); ok && t != "" {
			sig.Title = t
		}
		if b, ok := v["body"].(string); ok && b != "" {
			sig.Body = b
		}
		return sig, true
	default:
		return Signal{}, false
	}
}
