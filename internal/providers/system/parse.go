package system

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var errUnexpectedOutput = errors.New("unexpected command output")

// Memory is the "Mem:" row of free -m, in MiB.
type Memory struct {
	Total   int
	Used    int
	Free    int
	Percent int
}

// Disk is the root filesystem row of df -h.
type Disk struct {
	Total     string
	Used      string
	Available string
	Percent   int
}

// parseTemp extracts the value from vcgencmd output such as "temp=48.3'C".
func parseTemp(out string) (string, error) {
	_, value, ok := strings.Cut(strings.TrimSpace(out), "=")
	if !ok || value == "" {
		return "", errUnexpectedOutput
	}
	return value, nil
}

// parseFree reads the second line of free -m.
func parseFree(out string) (Memory, error) {
	fields, err := secondLine(out, 4)
	if err != nil {
		return Memory{}, err
	}

	total, err := strconv.Atoi(fields[1])
	if err != nil {
		return Memory{}, err
	}
	used, err := strconv.Atoi(fields[2])
	if err != nil {
		return Memory{}, err
	}
	free, err := strconv.Atoi(fields[3])
	if err != nil {
		return Memory{}, err
	}

	mem := Memory{Total: total, Used: used, Free: free}
	if total > 0 {
		mem.Percent = int(math.Round(float64(used) / float64(total) * 100))
	}
	return mem, nil
}

// parseDF reads the second line of df -h /.
func parseDF(out string) (Disk, error) {
	fields, err := secondLine(out, 5)
	if err != nil {
		return Disk{}, err
	}

	percent, err := strconv.Atoi(strings.TrimSuffix(fields[4], "%"))
	if err != nil {
		return Disk{}, err
	}

	return Disk{
		Total:     fields[1],
		Used:      fields[2],
		Available: fields[3],
		Percent:   percent,
	}, nil
}

var (
	// procps: "%Cpu(s):  2.0 us,  1.0 sy,  0.0 ni, 96.5 id, ..."
	idleProcps = regexp.MustCompile(`,\s*([0-9.]+)%?\s*id`)
	// busybox: "CPU:   3% usr   1% sys   0% nic  95% idle ..."
	idleBusybox = regexp.MustCompile(`([0-9.]+)%?\s*idle`)
)

// parseTop finds the CPU summary line of top -bn1 and returns 100 minus idle.
func parseTop(out string) (float64, error) {
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, "Cpu(s)") && !strings.HasPrefix(strings.TrimSpace(line), "CPU:") {
			continue
		}
		m := idleProcps.FindStringSubmatch(line)
		if m == nil {
			m = idleBusybox.FindStringSubmatch(line)
		}
		if m == nil {
			return 0, errUnexpectedOutput
		}
		idle, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, err
		}
		return 100 - idle, nil
	}
	return 0, errUnexpectedOutput
}

func secondLine(out string, minFields int) ([]string, error) {
	lines := strings.Split(out, "\n")
	if len(lines) < 2 {
		return nil, errUnexpectedOutput
	}
	fields := strings.Fields(lines[1])
	if len(fields) < minFields {
		return nil, errUnexpectedOutput
	}
	return fields, nil
}
