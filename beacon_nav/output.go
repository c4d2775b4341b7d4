package beacon_nav

import (
	"fmt"
	"net"

	"go.uber.org/zap"
)

// UDPMotorDrive implements MotorDrive by sending "left,right,STATE" CSV
// datagrams. The setters only record the command; Flush sends it, at most
// once per loop iteration and only when something changed.
type UDPMotorDrive struct {
	conn   *net.UDPConn
	logger *zap.Logger
	state  func() TaskState

	left, right float64
	lastSent    string
}

// NewUDPMotorDrive creates a UDP sender for the given address. An empty
// address yields a drive that only tracks the commanded powers.
func NewUDPMotorDrive(addr string, logger *zap.Logger) (*UDPMotorDrive, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &UDPMotorDrive{logger: logger}
	if addr == "" {
		return d, nil
	}
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve output addr %q: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("dial output addr %q: %w", addr, err)
	}
	d.conn = conn
	return d, nil
}

// ReportState sets the function used to label outgoing packets.
func (d *UDPMotorDrive) ReportState(state func() TaskState) {
	d.state = state
}

// Close releases the UDP socket.
func (d *UDPMotorDrive) Close() error {
	if d == nil || d.conn == nil {
		return nil
	}
	return d.conn.Close()
}

func (d *UDPMotorDrive) SetLeftPower(power float64) {
	d.left = power
}

func (d *UDPMotorDrive) SetRightPower(power float64) {
	d.right = power
}

// Powers returns the last commanded left and right power.
func (d *UDPMotorDrive) Powers() (left, right float64) {
	return d.left, d.right
}

// Flush sends the current command when the powers or the state label
// differ from the last packet. It returns whether a packet was produced.
func (d *UDPMotorDrive) Flush() bool {
	p := d.payload()
	if p == d.lastSent {
		return false
	}
	d.lastSent = p
	d.send(p)
	return true
}

func (d *UDPMotorDrive) send(p string) {
	if d.conn == nil {
		return
	}
	if _, err := d.conn.Write([]byte(p)); err != nil {
		d.logger.Debug("motor packet dropped", zap.Error(err))
	}
}

// payload formats the current command as a CSV line.
func (d *UDPMotorDrive) payload() string {
	state := StateIdle
	if d.state != nil {
		state = d.state()
	}
	return fmt.Sprintf("%.4f,%.4f,%s", d.left, d.right, state.String())
}
