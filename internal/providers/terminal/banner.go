package terminal

import "fmt"

// Banner returns the greeting written to a new terminal, one chunk per line.
func Banner(serial string) []string {
	return []string{
		"\x1b[1;36m╔═══════════════════════════════════════════════════════╗\r\n",
		"\x1b[1;36m║     AutomataControls™ Neural Terminal v2.0           ║\r\n",
		fmt.Sprintf("\x1b[1;36m║     Controller: %-38s║\r\n", serial),
		"\x1b[1;36m║     © 2024 AutomataNexus, LLC. All Rights Reserved   ║\r\n",
		"\x1b[1;36m╚═══════════════════════════════════════════════════════╝\x1b[0m\r\n\r\n",
	}
}
