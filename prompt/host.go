package prompt

import (
	"bufio"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// HostInfo describes where generated commands will run.
type HostInfo struct {
	OS        string
	OSVersion string
	Path      string
	User      string
	Hostname  string
	Time      string
	Shell     string
}

func (h HostInfo) String() string {
	return fmt.Sprintf("Operating System: %s %s\nCurrent Path: %s\nCurrent User: %s\nHostname: %s\nCurrent Date and Time: %s\n",
		h.OS, h.OSVersion, h.Path, h.User, h.Hostname, h.Time)
}

// SnapshotHost gathers host context at turn time. Lookup failures leave fields as "unknown".
func SnapshotHost(shell string, now time.Time) HostInfo {
	h := HostInfo{
		OS:        runtime.GOOS,
		OSVersion: osVersion(),
		Path:      "unknown",
		User:      "unknown",
		Hostname:  "unknown",
		Time:      now.Format(time.RFC3339),
		Shell:     filepath.Base(shell),
	}
	if wd, err := os.Getwd(); err == nil {
		h.Path = wd
	}
	if u, err := user.Current(); err == nil {
		h.User = u.Username
	}
	if hn, err := os.Hostname(); err == nil {
		h.Hostname = hn
	}
	return h
}

func osVersion() string {
	if runtime.GOOS != "linux" {
		return runtime.GOARCH
	}
	f, err := os.Open("/etc/os-release")
	if err != nil {
		return runtime.GOARCH
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if v, ok := strings.CutPrefix(sc.Text(), "PRETTY_NAME="); ok {
			return strings.Trim(v, `"`) + " " + runtime.GOARCH
		}
	}
	return runtime.GOARCH
}
