package tohost

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
)

const (
	controlOK             = 200
	controlHandlerFailed  = 500
	controlUnknownCommand = 501
	controlNoSuchHandler  = 511

	maxControlData = 1 << 20
)

// NewControlServer returns a new control server listening on address and port once bound. It
// serves reads and writes of the handlers in t.
func NewControlServer(
	address string,
	port uint16,
	t *HandlerTable,
	logger *slog.Logger,
	errChan chan error,
) *ControlServer {
	if logger == nil {
		logger = slog.Default()
	}

	return &ControlServer{
		addr:     net.JoinHostPort(address, strconv.Itoa(int(port))),
		handlers: t,
		logger:   logger.With("component", "control"),
		errChan:  errChan,
	}
}

// ControlServer exposes a HandlerTable over a line oriented tcp protocol:
//
//	READ <handler>            -> 200 OK, DATA <n>, then n bytes of value
//	WRITE <handler> [value]   -> 200 OK
//	LIST                      -> 200 OK, DATA <n>, then n bytes of newline separated names
//	QUIT                      -> connection closed
type ControlServer struct {
	addr     string
	l        net.Listener
	handlers *HandlerTable
	logger   *slog.Logger
	errChan  chan error
}

// Bind starts the listener/binds it to the address/port it was created with. It must be called
// before Run.
func (c *ControlServer) Bind() error {
	lis, err := net.Listen(TCP, c.addr)
	if err != nil {
		return err
	}

	c.l = lis

	return nil
}

// Addr returns the bound listen address.
func (c *ControlServer) Addr() net.Addr {
	return c.l.Addr()
}

// Run accepts connections until ctx is canceled.
func (c *ControlServer) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()

		_ = c.l.Close()
	}()

	for {
		conn, err := c.l.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}

			c.logger.Warn("encountered error accepting control connection", "err", err)

			select {
			case c.errChan <- err:
			case <-ctx.Done():
				return
			}

			continue
		}

		go c.handle(conn)
	}
}

func (c *ControlServer) handle(conn net.Conn) {
	c.logger.Debug("received new connection", "remote", conn.RemoteAddr().String())

	defer func() {
		err := conn.Close()
		if err != nil {
			c.logger.Debug(
				"ignoring error closing connection",
				"remote", conn.RemoteAddr().String(),
				"err", err,
			)
		}
	}()

	scanner := bufio.NewScanner(conn)
	w := bufio.NewWriter(conn)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		command, args, _ := strings.Cut(line, " ")

		if strings.EqualFold(command, "QUIT") {
			return
		}

		c.dispatch(w, strings.ToUpper(command), strings.TrimSpace(args))

		err := w.Flush()
		if err != nil {
			c.logger.Debug("encountered error writing control response", "err", err)

			return
		}
	}
}

func (c *ControlServer) dispatch(w *bufio.Writer, command, args string) {
	switch command {
	case "READ":
		value, err := c.handlers.Read(args)
		if err != nil {
			writeControlError(w, err)

			return
		}

		writeControlData(w, value)
	case "WRITE":
		name, value, _ := strings.Cut(args, " ")

		err := c.handlers.Write(name, value)
		if err != nil {
			writeControlError(w, err)

			return
		}

		fmt.Fprintf(w, "%d OK\n", controlOK)
	case "LIST":
		writeControlData(w, strings.Join(c.handlers.Names(), "\n"))
	default:
		fmt.Fprintf(w, "%d unknown command %q\n", controlUnknownCommand, command)
	}
}

func writeControlData(w *bufio.Writer, value string) {
	fmt.Fprintf(w, "%d OK\nDATA %d\n%s", controlOK, len(value), value)
}

func writeControlError(w *bufio.Writer, err error) {
	code := controlHandlerFailed

	if errors.Is(err, errNoSuchHandler) {
		code = controlNoSuchHandler
	}

	fmt.Fprintf(w, "%d %s\n", code, strings.ReplaceAll(err.Error(), "\n", " "))
}

// ReadControlHandler connects to the control socket at address and returns the value of the read
// handler name.
func ReadControlHandler(ctx context.Context, address, name string) (string, error) {
	var d net.Dialer

	conn, err := d.DialContext(ctx, TCP, address)
	if err != nil {
		return "", err
	}

	defer func() {
		_ = conn.Close()
	}()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	_, err = fmt.Fprintf(conn, "READ %s\n", name)
	if err != nil {
		return "", err
	}

	r := bufio.NewReader(conn)

	status, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}

	status = strings.TrimSpace(status)

	code, msg, _ := strings.Cut(status, " ")
	if code != strconv.Itoa(controlOK) {
		return "", fmt.Errorf("%w: %s", ErrHandler, msg)
	}

	dataLine, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}

	n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(dataLine), "DATA "))
	if err != nil || n < 0 || n > maxControlData {
		return "", fmt.Errorf("%w: malformed data line %q", ErrHandler, dataLine)
	}

	value := make([]byte, n)

	_, err = io.ReadFull(r, value)
	if err != nil {
		return "", err
	}

	return string(value), nil
}
