package events

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

// NotificationType is the visual class of a notification.
type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

// Notification is one fire-and-forget message for the user.
type Notification struct {
	Title    string
	Message  string
	Type     NotificationType
	Priority string
	Category string
	Source   string
}

// Notifier delivers notifications. Implementations must not block for long
// and never report failure to the caller.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(n Notification)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notification) { f(n) }

// Nop returns a Notifier that discards everything.
func Nop() Notifier {
	return NotifierFunc(func(Notification) {})
}

// ConsoleNotifier prints notifications as colored status lines.
type ConsoleNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

var _ Notifier = (*ConsoleNotifier)(nil)

// NewConsoleNotifier creates a notifier writing to out.
func NewConsoleNotifier(out io.Writer) *ConsoleNotifier {
	return &ConsoleNotifier{out: out}
}

// Notify writes one line: a colored title followed by the message.
func (c *ConsoleNotifier) Notify(n Notification) {
	var paint func(format string, a ...interface{}) string
	switch n.Type {
	case NotificationSuccess:
		paint = color.GreenString
	case NotificationWarning:
		paint = color.YellowString
	case NotificationError:
		paint = color.RedString
	default:
		paint = color.CyanString
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if n.Message == "" {
		fmt.Fprintln(c.out, paint("[%s]", n.Title))
		return
	}
	fmt.Fprintf(c.out, "%s %s\n", paint("[%s]", n.Title), n.Message)
}
