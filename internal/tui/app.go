// Package tui is the operator console: a terminal dashboard showing gate
// and printer state, the tickets printed this session, and a command line
// for connect/scan/manual actions.
package tui

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/gakushoku/kitchen-terminal/internal/gate"
	"github.com/gakushoku/kitchen-terminal/internal/printer"
	"github.com/gakushoku/kitchen-terminal/internal/ticket"
)

// App is the tview-based operator console.
type App struct {
	App     *tview.Application
	gate    *gate.Gate
	session *printer.Session
	history *ticket.History
	port    string

	flex *tview.Flex

	statusBox    *tview.TextView
	historyTable *tview.Table
	logsArea     *tview.TextView
	commandInput *tview.InputField

	logs      []string
	maxLogs   int
	startTime time.Time
}

// New creates the operator console.
func New(g *gate.Gate, session *printer.Session, history *ticket.History, port string) *App {
	app := tview.NewApplication()

	t := &App{
		App:       app,
		gate:      g,
		session:   session,
		history:   history,
		port:      port,
		logs:      make([]string, 0),
		maxLogs:   100,
		startTime: time.Now(),
	}

	t.setupUI()
	return t
}

func (t *App) setupUI() {
	t.statusBox = tview.NewTextView()
	t.statusBox.SetBorder(true)
	t.statusBox.SetTitle("Terminal Status")
	t.statusBox.SetDynamicColors(true)

	t.historyTable = tview.NewTable()
	t.historyTable.SetBorder(true)
	t.historyTable.SetTitle("Printed Tickets")

	t.logsArea = tview.NewTextView()
	t.logsArea.SetBorder(true)
	t.logsArea.SetTitle("Logs")
	t.logsArea.SetDynamicColors(true)
	t.logsArea.SetScrollable(true)
	t.logsArea.SetChangedFunc(func() {
		t.App.Draw()
	})

	t.commandInput = tview.NewInputField().
		SetLabel("> ").
		SetFieldWidth(0).
		SetPlaceholder("Type a command (e.g., 'help')").
		SetDoneFunc(func(key tcell.Key) {
			if key == tcell.KeyEnter {
				t.executeCommand(t.commandInput.GetText())
				t.commandInput.SetText("")
			}
		})

	topRow := tview.NewFlex().
		AddItem(t.statusBox, 0, 1, false).
		AddItem(t.historyTable, 0, 2, false)

	bottom := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(t.logsArea, 0, 3, false).
		AddItem(t.commandInput, 1, 0, true)

	t.flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(topRow, 0, 1, false).
		AddItem(bottom, 0, 1, false)

	t.App.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if t.commandInput.HasFocus() {
			if event.Key() == tcell.KeyEsc {
				t.App.SetFocus(t.historyTable)
				return nil
			}
			return event
		}

		switch event.Key() {
		case tcell.KeyCtrlC, tcell.KeyEsc:
			t.App.Stop()
			return nil
		case tcell.KeyRune:
			switch event.Rune() {
			case ':':
				t.App.SetFocus(t.commandInput)
				return nil
			case 'q':
				t.App.Stop()
				return nil
			}
		}
		return event
	})

	t.App.SetRoot(t.flex, true)
}

// Run starts the console.
func (t *App) Run() error {
	t.refreshAll()

	go t.refreshTicker()

	t.AddLog("🍚 Kitchen terminal starting...", "info")

	return t.App.Run()
}

func (t *App) refreshTicker() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		t.App.QueueUpdateDraw(func() {
			t.refreshAll()
		})
	}
}

func (t *App) refreshAll() {
	t.refreshStatus()
	t.refreshHistory()
}

func (t *App) refreshStatus() {
	st := t.gate.Status()
	uptime := time.Since(t.startTime)

	printerColor := "[red]"
	if st.PrinterState == printer.StateReady {
		printerColor = "[green]"
	}

	camera := "stopped"
	if st.Scanning {
		camera = "scanning"
	}
	if st.Processing {
		camera = "processing"
	}

	text := fmt.Sprintf(`Printer: %s%s[white]
Camera: %s
Next ticket: No.%02d
Printed: %d

%s

Uptime: %dh %dm
API: :%s`,
		printerColor, st.PrinterState,
		camera,
		st.NextTicket,
		st.PrintedCount,
		st.Message,
		int(uptime.Hours()), int(uptime.Minutes())%60,
		t.port)

	t.statusBox.SetText(text)
}

func (t *App) refreshHistory() {
	t.historyTable.Clear()

	t.historyTable.SetCell(0, 0, tview.NewTableCell("No.").SetAlign(tview.AlignCenter).SetSelectable(false))
	t.historyTable.SetCell(0, 1, tview.NewTableCell("Order").SetAlign(tview.AlignCenter).SetSelectable(false))
	t.historyTable.SetCell(0, 2, tview.NewTableCell("Total").SetAlign(tview.AlignCenter).SetSelectable(false))
	t.historyTable.SetCell(0, 3, tview.NewTableCell("Printed").SetAlign(tview.AlignCenter).SetSelectable(false))

	for i, e := range t.history.Snapshot() {
		row := i + 1
		t.historyTable.SetCell(row, 0, tview.NewTableCell(fmt.Sprintf("No.%02d", e.TicketNo)))
		t.historyTable.SetCell(row, 1, tview.NewTableCell(e.OrderID))
		t.historyTable.SetCell(row, 2, tview.NewTableCell(fmt.Sprintf("¥%d", e.TotalAmount)))
		t.historyTable.SetCell(row, 3, tview.NewTableCell(e.PrintedAt.Format("15:04:05")))
	}
}

func (t *App) executeCommand(cmd string) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return
	}

	command := strings.ToLower(parts[0])

	t.AddLog(fmt.Sprintf("> %s", cmd), "command")

	switch command {
	case "connect", "c":
		t.connectCommand(parts[1:])

	case "disconnect":
		t.session.Disconnect()
		t.AddLog("Printer disconnected", "info")

	case "start":
		t.gate.StartScanning()
		t.AddLog("Camera scanning started", "info")

	case "stop":
		t.gate.StopScanning()
		t.AddLog("Camera scanning stopped", "info")

	case "manual", "m":
		if len(parts) < 2 {
			t.AddLog("Usage: manual <order-id>", "error")
			return
		}
		if err := t.gate.Submit(parts[1]); err != nil {
			t.AddLog(fmt.Sprintf("Manual entry rejected: %v", err), "error")
			return
		}
		t.AddLog(fmt.Sprintf("Manual entry accepted: %s", parts[1]), "info")

	case "status", "s":
		t.refreshStatus()

	case "clear":
		t.logs = make([]string, 0)
		t.logsArea.Clear()

	case "refresh":
		t.refreshAll()

	case "help", "h", "?":
		t.showHelp()

	case "quit", "q":
		t.App.Stop()

	default:
		t.AddLog(fmt.Sprintf("Unknown command: %s. Type 'help' for available commands.", command), "error")
	}
}

func (t *App) connectCommand(args []string) {
	if len(args) == 0 {
		t.AddLog("Usage: connect <host> [port]", "error")
		return
	}

	host := args[0]
	port := 9100
	if len(args) > 1 {
		p, err := strconv.Atoi(args[1])
		if err != nil {
			t.AddLog(fmt.Sprintf("Invalid port: %s", args[1]), "error")
			return
		}
		port = p
	}

	t.AddLog(fmt.Sprintf("Connecting to %s:%d...", host, port), "info")

	go func() {
		err := t.session.Connect(printer.Endpoint{Transport: "network", Host: host, Port: port})
		t.App.QueueUpdateDraw(func() {
			if err != nil {
				t.AddLog(fmt.Sprintf("Connection failed: %v", err), "error")
				return
			}
			t.AddLog("Printer connected", "info")
			t.refreshStatus()
		})
	}()
}

func (t *App) showHelp() {
	help := []string{
		"Available commands:",
		"  connect <host> [port]  - Connect the network printer",
		"  disconnect             - Disconnect the printer",
		"  start / stop           - Control the camera scan loop",
		"  manual <order-id>, m   - Print a ticket by order ID",
		"  status, s              - Refresh the status panel",
		"  clear                  - Clear logs",
		"  refresh                - Refresh all panels",
		"  help, h, ?             - Show this help",
		"  quit, q                - Exit",
		"",
		"Keyboard shortcuts:",
		"  : - Focus the command line",
		"  Esc - Leave the command line / quit",
	}
	t.AddLog(strings.Join(help, "\n"), "info")
}

// AddLog appends an entry to the logs panel.
func (t *App) AddLog(message string, level string) {
	var color string
	var icon string

	switch level {
	case "error":
		color = "[red]"
		icon = "❌"
	case "warning":
		color = "[yellow]"
		icon = "⚠️"
	case "command":
		color = "[cyan]"
		icon = ">"
	default:
		color = "[white]"
		icon = "ℹ️"
	}

	timeStr := time.Now().Format("15:04:05")
	logEntry := fmt.Sprintf("%s[%s] %s %s[white]\n", color, timeStr, icon, message)

	t.logs = append(t.logs, logEntry)
	if len(t.logs) > t.maxLogs {
		t.logs = t.logs[len(t.logs)-t.maxLogs:]
	}

	t.logsArea.Clear()
	for _, log := range t.logs {
		fmt.Fprint(t.logsArea, log)
	}

	t.logsArea.ScrollToEnd()
}

// LogWriter adapts the logs panel to io.Writer so slog output lands in
// the console instead of stderr.
func (t *App) LogWriter() io.Writer {
	return &logWriter{app: t}
}

type logWriter struct {
	app *App
}

func (w *logWriter) Write(p []byte) (n int, err error) {
	message := strings.TrimSpace(string(p))
	if message != "" {
		w.app.AddLog(message, "info")
	}
	return len(p), nil
}
