package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rekav/img2ascii"
)

// output is where the console prints. The TUI keeps a transcript; batch
// mode prints to stdout.
type output interface {
	img2ascii.LineSink
	Clear()
}

// command is one entry of the console's command table.
type command struct {
	usage   string
	summary string
	// doc is printed by "man" after the usage line.
	doc []string
	// run executes the command and reports whether the console should
	// exit.
	run func(c *console, args string) bool
}

// console interprets typed lines against the command table.
type console struct {
	poller   *img2ascii.Poller
	out      output
	commands map[string]command
	// lastErr is the error of the most recent to_ascii submission.
	lastErr error
}

func newConsole(poller *img2ascii.Poller, out output) *console {
	c := &console{poller: poller, out: out}
	c.commands = map[string]command{
		"help": {
			usage:   "help",
			summary: "Show this help message",
			run:     (*console).help,
		},
		"clear": {
			usage:   "clear",
			summary: "Clear terminal output",
			run: func(c *console, _ string) bool {
				c.out.Clear()
				return false
			},
		},
		"man": {
			usage:   "man <command>",
			summary: "Show command documentation",
			run:     (*console).man,
		},
		"to_ascii": {
			usage:   "to_ascii <url> [key=value ...]",
			summary: "Convert image from URL to ASCII art",
			doc: []string{
				"Fetches the image and prints it as ASCII art.",
				"Options:",
				"  download=1     also export a PNG",
				"  wide=<n>       characters per line (1-500, default 130)",
				"  font_size=<n>  export font size in pixels (default 6)",
				"  color=<name>   export text color (default white)",
				"  bg=<name>      export background (default black)",
				"  name=<file>    export file name (default ascii_highres.png)",
				"  ramp=<n>       character ramp preset 0-3",
				"Colors: " + strings.Join(img2ascii.ColorNames(), " "),
			},
			run: func(c *console, args string) bool {
				// Submit reports its own errors.
				c.lastErr = c.poller.Submit(args)
				return false
			},
		},
		"cancel": {
			usage:   "cancel",
			summary: "Abandon the image request in flight",
			run: func(c *console, _ string) bool {
				if !c.poller.Cancel() {
					c.out.WriteLine("Nothing to cancel", img2ascii.LineSystem)
				}
				return false
			},
		},
		"status": {
			usage:   "status",
			summary: "Show the converter state",
			run:     (*console).status,
		},
		"quit": {
			usage:   "quit",
			summary: "Leave the console",
			run:     func(*console, string) bool { return true },
		},
	}
	return c
}

// Execute runs one typed line and reports whether the console should
// exit.
func (c *console) Execute(line string) bool {
	name, args := img2ascii.ParseCommand(line)
	if name == "" {
		return false
	}
	cmd, ok := c.commands[name]
	if !ok {
		c.out.WriteLine("Unknown command. Type 'help'", img2ascii.LineSystem)
		return false
	}
	return cmd.run(c, args)
}

func (c *console) names() []string {
	names := make([]string, 0, len(c.commands))
	for name := range c.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *console) help(string) bool {
	rule := strings.Repeat("-", 50)
	c.out.WriteLine(rule, img2ascii.LineNormal)
	c.out.WriteLine("Commands:", img2ascii.LineNormal)
	for _, name := range c.names() {
		cmd := c.commands[name]
		c.out.WriteLine(fmt.Sprintf("  %-32s - %s", cmd.usage, cmd.summary), img2ascii.LineNormal)
	}
	c.out.WriteLine(rule, img2ascii.LineNormal)
	c.out.WriteLine("Type 'man <command>' for more info", img2ascii.LineNormal)
	return false
}

func (c *console) man(args string) bool {
	cmd, ok := c.commands[strings.TrimSpace(args)]
	if !ok {
		c.out.WriteLine("Usage: man <command>", img2ascii.LineSystem)
		return false
	}
	c.out.WriteLine("Usage: "+cmd.usage, img2ascii.LineNormal)
	c.out.WriteLine(cmd.summary, img2ascii.LineNormal)
	for _, line := range cmd.doc {
		c.out.WriteLine(line, img2ascii.LineNormal)
	}
	return false
}

func (c *console) status(string) bool {
	line := "State: " + c.poller.State().String()
	if req, ok := c.poller.Current(); ok {
		line += fmt.Sprintf(" (request #%d %s)", req.ID, req.SourceURL)
	}
	c.out.WriteLine(line, img2ascii.LineSystem)
	return false
}
