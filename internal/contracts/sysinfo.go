package contracts

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// osReleasePath is the standard os-release location.
const osReleasePath = "/etc/os-release"

// SystemInformation carries the host facts reported to the contracts
// service when registering the machine.
type SystemInformation struct {
	// Version is the os-release VERSION field, e.g. "22.04.4 LTS (Jammy Jellyfish)".
	Version string

	// VersionID is the os-release VERSION_ID field, e.g. "22.04".
	VersionID string

	// VersionCodename is the os-release VERSION_CODENAME field, e.g. "jammy".
	VersionCodename string

	// KernelVersion is `uname -r` output.
	KernelVersion string

	// Architecture is `uname -m` output.
	Architecture string
}

// GatherSystemInformation reads /etc/os-release and queries uname for the
// kernel version and machine architecture.
func GatherSystemInformation() (SystemInformation, error) {
	fields, err := parseOSRelease(osReleasePath)
	if err != nil {
		return SystemInformation{}, err
	}

	kernel, err := runUname("-r")
	if err != nil {
		return SystemInformation{}, err
	}
	arch, err := runUname("-m")
	if err != nil {
		return SystemInformation{}, err
	}

	return SystemInformation{
		Version:         fields["version"],
		VersionID:       fields["version_id"],
		VersionCodename: fields["version_codename"],
		KernelVersion:   kernel,
		Architecture:    arch,
	}, nil
}

// parseOSRelease parses an os-release file into a map with lowercased
// keys. Values may be quoted per the os-release format; surrounding
// quotes are stripped.
func parseOSRelease(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	fields := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, `"'`)
		fields[strings.ToLower(key)] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return fields, nil
}

// runUname returns the trimmed output of uname with the given flag.
func runUname(flag string) (string, error) {
	output, err := exec.Command("uname", flag).Output()
	if err != nil {
		return "", fmt.Errorf("uname %s failed: %w", flag, err)
	}
	return strings.TrimSpace(string(output)), nil
}
