// Package ascii is a line-oriented terminal front end for a local game.
package ascii

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	engine "github.com/bruno00o/Patchwork/engine"
	"github.com/bruno00o/Patchwork/service/internal/game"
)

// Cell glyphs.
const (
	glyphEmpty    = '.'
	glyphFilled   = '#'
	glyphCursor   = '@'
	glyphConflict = '!'
)

// Terminal reads answers line by line from in and writes to out. Writes are
// serialized, so game events may arrive from the turn timer while a prompt
// is waiting for input.
type Terminal struct {
	in  *bufio.Scanner
	out io.Writer
	mu  sync.Mutex // guards out
}

var _ game.Display = (*Terminal)(nil)

// New returns a Terminal over the given streams.
func New(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewScanner(in), out: out}
}

func (t *Terminal) printf(format string, args ...interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, args...)
}

// readLine returns the next trimmed input line.
func (t *Terminal) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !t.in.Scan() {
		if err := t.in.Err(); err != nil {
			return "", err
		}
		return "", io.ErrUnexpectedEOF
	}
	return strings.TrimSpace(t.in.Text()), nil
}

// ShowState prints the track, every player's quilt and the market window.
func (t *Terminal) ShowState(v engine.View) {
	t.printf("\n=== turn %d, %s ===\n", v.Turn, v.Phase)
	t.printf("track: %s\n", renderTrack(v.Track))
	for i, p := range v.Players {
		marker := " "
		if i == v.Acting {
			marker = ">"
		}
		special := ""
		if v.SpecialOwner == i {
			special = " [special tile]"
		}
		t.printf("%s %d %s: buttons %d, income %d, square %d, empty %d, score %d%s\n",
			marker, i+1, p.Name, p.Money, p.Income, p.Position, p.Empty, p.Score, special)
	}
	acting := v.Players[v.Acting]
	t.printf("%s's quilt:\n%s", acting.Name, renderQuilt(acting.Occupancy, nil, 0, 0))
	t.printf("market (%d patches):\n", v.MarketSize)
	for i, p := range v.Window {
		t.printf("  [%d] #%d price %d, time %d, income %d\n%s", i+1, p.ID, p.Price, p.Movement, p.Income, indent(p.Rows, "      "))
	}
	if v.Pending != nil {
		t.printf("free patch #%d must be placed\n", v.Pending.ID)
	}
}

// ChooseAction asks the acting player to buy a window patch or pass.
// Unparseable answers are asked again here; out-of-range indices are left to
// the game to reject.
func (t *Terminal) ChooseAction(ctx context.Context, v engine.View) (game.Choice, error) {
	for {
		t.printf("%s: buy [1-%d] or pass [p]: ", v.Players[v.Acting].Name, len(v.Window))
		line, err := t.readLine(ctx)
		if err != nil {
			return game.Choice{}, err
		}
		switch strings.ToLower(line) {
		case "p", "pass":
			return game.Choice{Pass: true}, nil
		}
		n, err := strconv.Atoi(line)
		if err != nil {
			t.printf("enter a patch number or p\n")
			continue
		}
		return game.Choice{Window: n - 1}, nil
	}
}

// ChoosePlacement lets the player move, rotate and flip p over their quilt.
// Commands: w/a/s/d move, r rotate clockwise, f flip, c confirm, q back.
// Several commands may share one line.
func (t *Terminal) ChoosePlacement(ctx context.Context, v engine.View, p engine.Patch) (engine.Placement, bool, error) {
	occupancy := v.Players[v.Acting].Occupancy
	height := len(occupancy)
	width := 0
	if height > 0 {
		width = len(occupancy[0])
	}
	row, col, rot, flip := 0, 0, 0, false

	for {
		oriented := p.Orient(rot, flip)
		t.printf("placing #%d at (%d,%d):\n%s", p.ID, row, col, renderQuilt(occupancy, &oriented, row, col))
		t.printf("[wasd] move, [r]otate, [f]lip, [c]onfirm, [q] back: ")
		line, err := t.readLine(ctx)
		if err != nil {
			return engine.Placement{}, false, err
		}
		for _, cmd := range strings.ToLower(line) {
			switch cmd {
			case 'w':
				row = clamp(row-1, height)
			case 's':
				row = clamp(row+1, height)
			case 'a':
				col = clamp(col-1, width)
			case 'd':
				col = clamp(col+1, width)
			case 'r':
				rot = (rot + 1) % 4
			case 'f':
				flip = !flip
			case 'c':
				return engine.Placement{Patch: p.Orient(rot, flip), Row: row, Col: col}, true, nil
			case 'q':
				return engine.Placement{}, false, nil
			case ' ':
			default:
				t.printf("unknown command %q\n", cmd)
			}
		}
	}
}

// Reject reports a refused choice.
func (t *Terminal) Reject(err error) {
	t.printf("rejected: %v\n", err)
}

// Notify prints a one-line summary of a public event.
func (t *Terminal) Notify(ev game.GameEvent) {
	who := ""
	if ev.User != nil {
		who = ev.User.Name
	}
	switch ev.Type {
	case game.EventPlayerBuy:
		t.printf("* %s bought patch #%d (%+v buttons)\n", who, ev.Patch.ID, ev.Payload["moneyDelta"])
	case game.EventPlayerPass:
		if noOp, _ := ev.Payload["noOp"].(bool); noOp {
			t.printf("* %s passed without moving\n", who)
			return
		}
		t.printf("* %s passed to square %v (%+v buttons)\n", who, ev.Payload["to"], ev.Payload["moneyDelta"])
	case game.EventPlayerButtonIncome:
		t.printf("* %s collected income on %v square(s)\n", who, ev.Payload["squares"])
	case game.EventPlayerFreePatch:
		t.printf("* %s picked up free patch #%d\n", who, ev.Patch.ID)
	case game.EventPlayerFreePatchPlaced:
		t.printf("* %s placed free patch #%d\n", who, ev.Patch.ID)
	case game.EventPlayerFreePatchDiscard:
		t.printf("* free patch #%d fits nowhere on %s's quilt and is discarded\n", ev.Patch.ID, who)
	case game.EventPlayerSpecialTile:
		t.printf("* %s claims the special tile\n", who)
	case game.EventGameEnd:
		t.printf("* game over\n")
	}
}

// ShowOutcome prints the final scores.
func (t *Terminal) ShowOutcome(v engine.View, o engine.Outcome) {
	t.printf("\n=== final scores ===\n")
	for i, p := range v.Players {
		t.printf("  %s: %d\n", p.Name, o.Scores[i])
	}
	names := make([]string, len(o.Winners))
	for i, w := range o.Winners {
		names[i] = v.Players[w].Name
	}
	if o.Tie {
		t.printf("tie between %s\n", strings.Join(names, ", "))
		return
	}
	t.printf("%s wins\n", strings.Join(names, ", "))
}

func clamp(x, n int) int {
	if x < 0 {
		return 0
	}
	if x >= n {
		return n - 1
	}
	return x
}

func renderTrack(track []engine.TrackSquareView) string {
	var sb strings.Builder
	for _, sq := range track {
		switch {
		case len(sq.Markers) > 0:
			sb.WriteString(strconv.Itoa(sq.Markers[len(sq.Markers)-1] + 1))
		case sq.FreePatch:
			sb.WriteByte(engine.TrackFreePatch)
		case sq.Income:
			sb.WriteByte(engine.TrackIncome)
		default:
			sb.WriteByte(engine.TrackPlain)
		}
	}
	return sb.String()
}

// renderQuilt draws occupancy, with patch overlaid at (row, col) when given.
// Overlay cells that collide or fall off the board are marked '!'.
func renderQuilt(occupancy [][]int, patch *engine.Patch, row, col int) string {
	height := len(occupancy)
	width := 0
	if height > 0 {
		width = len(occupancy[0])
	}
	grid := make([][]byte, height)
	for r := range grid {
		grid[r] = make([]byte, width)
		for c := range grid[r] {
			if occupancy[r][c] != 0 {
				grid[r][c] = glyphFilled
			} else {
				grid[r][c] = glyphEmpty
			}
		}
	}
	offBoard := false
	if patch != nil {
		for pr := 0; pr < patch.Height(); pr++ {
			for pc := 0; pc < patch.Width(); pc++ {
				if !patch.Filled(pr, pc) {
					continue
				}
				r, c := row+pr, col+pc
				if r >= height || c >= width {
					offBoard = true
					continue
				}
				if grid[r][c] == glyphFilled {
					grid[r][c] = glyphConflict
				} else {
					grid[r][c] = glyphCursor
				}
			}
		}
	}
	var sb strings.Builder
	for _, line := range grid {
		sb.WriteString("  ")
		sb.Write(line)
		sb.WriteByte('\n')
	}
	if offBoard {
		sb.WriteString(string(glyphConflict) + " patch hangs off the board\n")
	}
	return sb.String()
}

func indent(lines []string, prefix string) string {
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(prefix)
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	return sb.String()
}
