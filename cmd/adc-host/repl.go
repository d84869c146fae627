package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"

	"goadc/host/client"
)

func runConnect(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("connect", flag.ExitOnError)
	bf := addBoardFlags(fs)
	fs.Parse(args)
	setupLogging(*bf.debug)

	c, err := bf.open(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	fmt.Printf("Connected. Dictionary %s, %d commands.\n", c.Dictionary().Version, len(c.Dictionary().Commands))
	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-c.Events():
				fmt.Printf("\n<< %s\n> ", m)
			}
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Print("> ")
		var line string
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			line = l
		}
		words, err := shlex.Split(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		if len(words) == 0 {
			continue
		}
		if words[0] == "quit" || words[0] == "exit" || words[0] == "q" {
			return nil
		}
		if err := execute(ctx, c, words); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
}

func printHelp() {
	fmt.Println(`
Available commands:
  help                   - Show this help message
  dict                   - Print dictionary summary
  status <group>         - Show group status
  read <group>           - Read the latest result of a group
  stream <group>         - Read the stream buffer of a group
  watch <group> [every] [for] - Poll a streaming group (default every 200ms for 5s)
  trace                  - Dump the driver trace
  <name> [arg=value...]  - Send any dictionary command and print its reply
  quit/exit/q            - Exit the program`)
}

func groupArg(words []string) (int, error) {
	if len(words) < 2 {
		return 0, fmt.Errorf("%s: missing group", words[0])
	}
	return strconv.Atoi(words[1])
}

func execute(parent context.Context, c *client.Client, words []string) error {
	if words[0] == "watch" {
		return watch(parent, c, words)
	}
	ctx, cancel := context.WithTimeout(parent, 2*time.Second)
	defer cancel()

	switch words[0] {
	case "help", "?":
		printHelp()
	case "dict":
		fmt.Print(c.Dictionary().Summary())
	case "status":
		id, err := groupArg(words)
		if err != nil {
			return err
		}
		st, err := c.Status(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("group %d: %s index=%d valid=%d flags=%#x\n", st.Group, st.StateName(), st.Index, st.Valid, st.Flags)
	case "read":
		id, err := groupArg(words)
		if err != nil {
			return err
		}
		vs, inRange, err := c.Read(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("group %d: %v in_range=%v\n", id, vs, inRange)
	case "stream":
		id, err := groupArg(words)
		if err != nil {
			return err
		}
		vs, valid, err := c.ReadStream(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("group %d: %v valid=%d\n", id, vs, valid)
	case "trace":
		events, err := c.Trace(ctx, 32)
		if err != nil {
			return err
		}
		for _, e := range events {
			fmt.Printf("  type=%d unit=%d group=%d value=%d\n", e.Type, e.Unit, e.Group, e.Value)
		}
	default:
		return send(ctx, c, words)
	}
	return nil
}

// watch prints readings of a streaming group for a while.
func watch(ctx context.Context, c *client.Client, words []string) error {
	id, err := groupArg(words)
	if err != nil {
		return err
	}
	every, span := 200*time.Millisecond, 5*time.Second
	if len(words) > 2 {
		if every, err = time.ParseDuration(words[2]); err != nil {
			return err
		}
	}
	if len(words) > 3 {
		if span, err = time.ParseDuration(words[3]); err != nil {
			return err
		}
	}
	ctx, cancel := context.WithTimeout(ctx, span)
	defer cancel()
	return c.Watch(ctx, id, every, func(s client.Sample) {
		fmt.Printf("%s group %d: %v valid=%d\n", s.Time.Format("15:04:05.000"), s.Group, s.Values, s.Valid)
	})
}

// send issues a dictionary command given as name k=v... and prints the reply.
func send(ctx context.Context, c *client.Client, words []string) error {
	args := make(map[string]string, len(words)-1)
	for _, w := range words[1:] {
		k, v, ok := strings.Cut(w, "=")
		if !ok {
			return fmt.Errorf("argument %q is not name=value", w)
		}
		args[k] = v
	}
	m, err := c.Request(ctx, words[0], args, replies(c)...)
	if err != nil {
		return err
	}
	fmt.Printf("<< %s\n", m)
	return nil
}

// replies lists every response the board can send.
func replies(c *client.Client) []string {
	var names []string
	for f := range c.Dictionary().Responses {
		name, _, _ := strings.Cut(f, " ")
		names = append(names, name)
	}
	return names
}
