package e2e

import (
	"bufio"
	"chat-pipeline/markup"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"
)

type BaseGatewaySuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseGatewaySuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.GatewayAddr == "" {
		s.T().Skip("GATEWAY_ADDR not set")
	}
}

type Participant struct {
	s      *BaseGatewaySuite
	Name   string
	conn   net.Conn
	reader *bufio.Reader
}

// Join connects a participant and prints a colorized header for the step in logs
func (s *BaseGatewaySuite) Join(name string) *Participant {
	header := fmt.Sprintf("  ====== %s joins ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)

	conn, err := net.DialTimeout("tcp", s.Config.GatewayAddr, 5*time.Second)
	s.Require().NoError(err, "Failed to connect to gateway at "+s.Config.GatewayAddr)
	p := &Participant{s: s, Name: name, conn: conn, reader: bufio.NewReader(conn)}
	p.Say(name)
	return p
}

func (p *Participant) Say(line string) {
	_, err := fmt.Fprintln(p.conn, line)
	p.s.Require().NoError(err)
}

// Expect reads lines until one contains want, colors removed.
func (p *Participant) Expect(want string) string {
	deadline := time.Now().Add(5 * time.Second)
	p.s.Require().NoError(p.conn.SetReadDeadline(deadline))
	for {
		line, err := p.reader.ReadString('\n')
		p.s.Require().NoError(err, "%s never received %q", p.Name, want)
		plain := markup.Plain(strings.TrimRight(line, "\r\n"))
		p.s.T().Logf("%s <- %s", p.Name, plain)
		if strings.Contains(plain, want) {
			return plain
		}
	}
}

// ExpectSilence fails when a line containing unwanted arrives within wait.
func (p *Participant) ExpectSilence(unwanted string, wait time.Duration) {
	p.s.Require().NoError(p.conn.SetReadDeadline(time.Now().Add(wait)))
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil {
			return
		}
		p.s.Require().NotContains(markup.Plain(line), unwanted)
	}
}

func (p *Participant) Leave() {
	p.Say("/quit")
	_ = p.conn.Close()
}
