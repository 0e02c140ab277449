package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// CheckFFmpeg reports the ffmpeg binary the audio bridge will execute.
//
// Lookup prefers an ffmpeg binary installed next to the running puhuri
// executable, then falls back to resolving the configured command from PATH.
// Bundled installs ship ffmpeg alongside puhuri so the two stay in lockstep.
func CheckFFmpeg(command string) Status {
	return checkFFmpegAt(command, executablePath())
}

// ResolveFFmpegPath returns the ffmpeg invocation path for exec.Command.
// When no binary can be found the configured name is returned unchanged so
// the resulting exec error names the missing command.
func ResolveFFmpegPath(command string) string {
	return CheckFFmpeg(command).Command
}

func checkFFmpegAt(command, selfPath string) Status {
	result := Status{
		Name:        "FFmpeg",
		Description: "MP3 encode and engine output decode",
	}

	if candidate, ok := ffmpegSidecarCandidate(selfPath); ok {
		if info, statErr := os.Stat(candidate); statErr == nil && isExecutable(info) {
			result.Command = candidate
			result.Available = true
			return result
		}
	}

	name := strings.TrimSpace(command)
	if name == "" {
		name = "ffmpeg"
	}
	if resolved, err := exec.LookPath(name); err == nil {
		result.Command = resolved
		result.Available = true
		return result
	}

	result.Command = name
	result.Available = false
	result.Detail = fmt.Sprintf("binary %q not found", name)
	return result
}

func executablePath() string {
	self, err := os.Executable()
	if err != nil {
		return ""
	}
	return self
}

func ffmpegSidecarCandidate(selfPath string) (string, bool) {
	if selfPath == "" {
		return "", false
	}
	dir := filepath.Dir(selfPath)
	name := "ffmpeg"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(dir, name), true
}

func isExecutable(info os.FileInfo) bool {
	if info == nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
