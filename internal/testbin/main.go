// Command testbin is a fake device console for testing the expecter
// library. It imitates the shell and the lz4 demo application of a small
// embedded node closely enough for the built-in scenarios to run against it.
//
// Behavior in shell mode (-app shell, the default):
//   - On startup and after every command, prints the "> " prompt
//   - "help": prints the command table
//   - "ifconfig": prints one interface with Layer 2 statistics
//   - "echo WORDS": prints WORDS
//   - "size": prints the terminal size
//   - "sleep MS": waits MS milliseconds, then prints "woke"
//   - "exit N": exits with status N
//   - Anything else: prints "shell: command not found: <cmd>"
//
// In lz4 mode (-app lz4) it prints the compression report once and then
// idles until its input is closed.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

const loremIpsum = "Lorem ipsum dolor sit amet, consectetur adipiscing elit. Lorem ipsum dolor site amat."

func main() {
	app := flag.String("app", "shell", "application to imitate: shell or lz4")
	ratio := flag.String("ratio", "0.42", "compression ratio reported by the lz4 app")
	txErrors := flag.Int("tx-errors", 0, "TX errors reported by ifconfig")
	flag.Parse()

	switch *app {
	case "lz4":
		runLZ4(*ratio)
	case "shell":
		runShell(*txErrors)
	default:
		fmt.Fprintf(os.Stderr, "testbin: unknown app %q\n", *app)
		os.Exit(2)
	}
}

func runLZ4(ratio string) {
	fmt.Printf("Data compressed with success (ratio: %s)\n", ratio)
	fmt.Println("Data decompressed with success!")
	fmt.Println("Validation done, decompressed string:")
	fmt.Println(loremIpsum)
	// A real node keeps running after the demo; wait to be killed.
	_, _ = io.Copy(io.Discard, os.Stdin)
}

func runShell(txErrors int) {
	var rxPackets, txPackets int

	fmt.Print("> ")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		cmd, arg, _ := strings.Cut(input, " ")

		switch cmd {
		case "":

		case "help":
			fmt.Println("Command              Description")
			fmt.Println("---------------------------------------")
			fmt.Println("reboot               Reboot the node")
			fmt.Println("ifconfig             Configure network interfaces")

		case "ifconfig":
			// Every call reports a little more traffic.
			rxPackets += 3
			txPackets += 2
			fmt.Println("Iface  7   HWaddr: 02:00:4b:6f:a2:4c ")
			fmt.Println("       Source address length: 6")
			fmt.Println("       Statistics for Layer 2")
			fmt.Printf("        RX packets %d  bytes %d\n", rxPackets, rxPackets*64)
			fmt.Printf("        TX packets %d (Multicast: %d)  bytes %d\n", txPackets, txPackets/2, txPackets*48)
			fmt.Printf("        TX succeeded %d errors %d\n", txPackets-txErrors, txErrors)

		case "echo":
			fmt.Println(arg)

		case "size":
			cols, rows, err := getTermSize(os.Stdout.Fd())
			if err != nil {
				fmt.Printf("error: %v\n", err)
				break
			}
			fmt.Printf("size: %dx%d\n", cols, rows)

		case "sleep":
			ms, err := strconv.Atoi(arg)
			if err != nil {
				fmt.Printf("error: invalid duration %q\n", arg)
				break
			}
			time.Sleep(time.Duration(ms) * time.Millisecond)
			fmt.Println("woke")

		case "exit":
			code, err := strconv.Atoi(arg)
			if err != nil {
				code = 0
			}
			os.Exit(code)

		default:
			fmt.Printf("shell: command not found: %s\n", cmd)
		}
		fmt.Print("> ")
	}
}

func getTermSize(fd uintptr) (cols, rows int, err error) {
	ws, err := unix.IoctlGetWinsize(int(fd), unix.TIOCGWINSZ)
	if err != nil {
		return 0, 0, err
	}
	return int(ws.Col), int(ws.Row), nil
}
