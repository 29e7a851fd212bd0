package backend

import (
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/dipperhq/dippershell/internal/logger"
	"github.com/dipperhq/dippershell/internal/netutil"
)

// DefaultExecutable is the bundled backend binary name, looked up under the
// resource directory when Command is not set.
const DefaultExecutable = "lightweight_server"

// Spec describes the backend sidecar to be spawned.
type Spec struct {
	Name        string        `toml:"name" mapstructure:"name"`
	Command     string        `toml:"command" mapstructure:"command"`           // executable path; relative paths resolve under ResourceDir
	Args        []string      `toml:"args" mapstructure:"args"`                 // extra args placed before --port
	ResourceDir string        `toml:"resource_dir" mapstructure:"resource_dir"` // bundle resources root
	WorkDir     string        `toml:"workdir" mapstructure:"workdir"`
	Env         []string      `toml:"env" mapstructure:"env"`
	Log         logger.Config `toml:"log" mapstructure:"log"`
}

func (s *Spec) name() string {
	if s.Name != "" {
		return s.Name
	}
	return DefaultExecutable
}

func (s *Spec) executable() string {
	cmd := s.Command
	if cmd == "" {
		cmd = DefaultExecutable
	}
	if !filepath.IsAbs(cmd) && s.ResourceDir != "" {
		return filepath.Join(s.ResourceDir, cmd)
	}
	return cmd
}

// BuildCommand constructs the *exec.Cmd for the sidecar bound to ep. The
// chosen port is always the last argument pair, matching the backend's
// --port flag contract.
func (s *Spec) BuildCommand(ep netutil.Endpoint) *exec.Cmd {
	args := make([]string, 0, len(s.Args)+2)
	args = append(args, s.Args...)
	args = append(args, "--port", strconv.Itoa(ep.Port))
	// ok: intentional execution of the bundled backend
	// #nosec G204
	cmd := exec.Command(s.executable(), args...)
	if s.WorkDir != "" {
		cmd.Dir = s.WorkDir
	}
	if len(s.Env) > 0 {
		cmd.Env = s.Env
	}
	return cmd
}
