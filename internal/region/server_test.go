package region

import (
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Passion-Never-Dissipate/candy-tools/internal/query"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type player struct {
	dim     string
	x, y, z float64
	attrs   map[string]string
}

var (
	enumerateRe = regexp.MustCompile(`_~'dimension' == '([^']+)' && \(p = pos\(_\); ` +
		`p:0 >= (\S+) && p:0 <= (\S+) && p:1 >= (\S+) && p:1 <= (\S+) && p:2 >= (\S+) && p:2 <= (\S+)\)\), _~'name'\); ` +
		`logger\('\[candy_tools\] (\w+) players: '`)
	attributeCmdRe = regexp.MustCompile(`^script run p = player\('(\w+)'\); if\(p, logger\('\[candy_tools\] (\w+) value: ' \+ p~'(\w+)'\)`)
)

// fakeServer answers enumeration and attribute commands from an in-memory
// player table. Replies are fed to the service by a single goroutine.
type fakeServer struct {
	t   *testing.T
	svc *query.Service

	mu              sync.Mutex
	players         map[string]*player
	silentEnumerate bool
	silentAttribute bool
	afterEnumerate  func(s *fakeServer)
	enumerateCalls  int
	attributeCalls  map[string]int
	extraNames      string

	lines chan string
	stop  chan struct{}
	done  chan struct{}
}

func newFakeServer(t *testing.T, players map[string]*player) (*fakeServer, *query.Service) {
	t.Helper()
	s := &fakeServer{
		t:              t,
		players:        players,
		attributeCalls: make(map[string]int),
		lines:          make(chan string, 64),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
	svc := query.NewService(query.ServiceOptions{Sink: s, Logger: testLogger()})
	s.svc = svc
	guard := query.NewGuard(svc.Registry(), query.GuardOptions{Logger: testLogger()})
	guard.Start("test")

	go s.feed()
	t.Cleanup(func() {
		guard.Stop("test cleanup")
		close(s.stop)
		<-s.done
	})
	return s, svc
}

func (s *fakeServer) feed() {
	defer close(s.done)
	for {
		select {
		case line := <-s.lines:
			time.Sleep(2 * time.Millisecond)
			s.svc.OnLine(line)
		case <-s.stop:
			return
		}
	}
}

func (s *fakeServer) Execute(command string) error {
	if m := enumerateRe.FindStringSubmatch(command); m != nil {
		s.lines <- s.enumerate(m)
		return nil
	}
	if m := attributeCmdRe.FindStringSubmatch(command); m != nil {
		s.lines <- s.attribute(m[1], m[2], m[3])
		return nil
	}
	s.t.Errorf("unexpected command %q", command)
	return nil
}

func (s *fakeServer) enumerate(m []string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enumerateCalls++

	bound := func(i int) float64 {
		v, err := strconv.ParseFloat(m[i], 64)
		if err != nil {
			s.t.Errorf("bad bound %q", m[i])
		}
		return v
	}
	x1, x2, y1, y2, z1, z2 := bound(2), bound(3), bound(4), bound(5), bound(6), bound(7)

	var names []string
	for name, p := range s.players {
		if p.dim == m[1] && p.x >= x1 && p.x <= x2 && p.y >= y1 && p.y <= y2 && p.z >= z1 && p.z <= z2 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if s.extraNames != "" {
		names = append(names, s.extraNames)
	}
	if s.afterEnumerate != nil {
		defer s.afterEnumerate(s)
	}
	if s.silentEnumerate {
		return "noise"
	}
	return "[candy_tools] " + m[8] + " players: " + strings.Join(names, ",")
}

func (s *fakeServer) attribute(name, token, attr string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attributeCalls[name]++

	if s.silentAttribute {
		return "noise"
	}
	p, ok := s.players[name]
	if !ok {
		return "[candy_tools] " + token + " missing"
	}
	return "[candy_tools] " + token + " value: " + p.attrs[attr]
}

func (s *fakeServer) counts() (enumerate int, attribute map[string]int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attribute = make(map[string]int, len(s.attributeCalls))
	for k, v := range s.attributeCalls {
		attribute[k] = v
	}
	return s.enumerateCalls, attribute
}
