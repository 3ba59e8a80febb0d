package chip

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// DefaultTimeout bounds the whole read sequence, connect through the last
// data-group read. Contactless round-trips are slow and users hold the
// document against the reader by hand.
const DefaultTimeout = 2 * time.Minute

// lds1AID selects the eMRTD LDS1 applet.
var lds1AID = []byte{0xA0, 0x00, 0x00, 0x02, 0x47, 0x10, 0x01}

const readChunkSize = 0xE0

// Session drives one BAC authentication and read sequence against a single
// tag. Not safe for concurrent use; callers serialize access and run
// operations off any UI-responsive thread.
type Session struct {
	// Timeout bounds the whole sequence; it takes effect at Connect.
	Timeout time.Duration

	transport Transport
	state     State
	deadline  time.Time

	ksEnc []byte
	ksMac []byte
	ssc   []byte

	rand io.Reader
}

// NewSession wraps a transport for a freshly detected tag.
func NewSession(transport Transport) *Session {
	return &Session{
		Timeout:   DefaultTimeout,
		transport: transport,
		state:     StateDisconnected,
		rand:      rand.Reader,
	}
}

// State reports the current lifecycle position.
func (s *Session) State() State { return s.state }

// SessionKeys returns copies of the secure-messaging key material derived
// during authentication: KSenc, KSmac and the send sequence counter. The
// transport's secure-messaging wrapper consumes these.
func (s *Session) SessionKeys() (ksEnc, ksMac, ssc []byte) {
	return bytes.Clone(s.ksEnc), bytes.Clone(s.ksMac), bytes.Clone(s.ssc)
}

// Connect establishes the physical link and selects the LDS1 applet.
func (s *Session) Connect() error {
	if s.state != StateDisconnected {
		return fmt.Errorf("chip: connect called in state %q", s.state)
	}
	if err := s.transport.Connect(); err != nil {
		return &TransportError{Op: "connect", Err: err}
	}
	s.deadline = time.Now().Add(s.Timeout)

	cmd := append([]byte{0x00, 0xA4, 0x04, 0x0C, byte(len(lds1AID))}, lds1AID...)
	if _, err := s.transceive("select applet", cmd); err != nil {
		return err
	}

	s.state = StateConnected
	slog.Debug("Chip transport connected, LDS1 applet selected")
	return nil
}

// Authenticate performs BAC mutual authentication with the concatenated
// MRZ key and derives the secure-messaging session keys.
func (s *Session) Authenticate(bacKey string) error {
	if s.state != StateConnected {
		return fmt.Errorf("chip: authenticate called in state %q", s.state)
	}

	kseed := kseedFromKey(bacKey)
	kEnc := deriveKey(kseed, keyTypeEnc)
	kMac := deriveKey(kseed, keyTypeMac)

	rndICC, err := s.transceive("get challenge", []byte{0x00, 0x84, 0x00, 0x00, 0x08})
	if err != nil {
		return err
	}
	if len(rndICC) != 8 {
		return &AuthenticationError{Reason: fmt.Sprintf("challenge length %d, want 8", len(rndICC))}
	}

	rndIFD := make([]byte, 8)
	kIFD := make([]byte, 16)
	if _, err := io.ReadFull(s.rand, rndIFD); err != nil {
		return fmt.Errorf("chip: generating terminal challenge: %w", err)
	}
	if _, err := io.ReadFull(s.rand, kIFD); err != nil {
		return fmt.Errorf("chip: generating key material: %w", err)
	}

	plain := make([]byte, 0, 32)
	plain = append(plain, rndIFD...)
	plain = append(plain, rndICC...)
	plain = append(plain, kIFD...)
	eIFD := tdesEncrypt(kEnc, plain)
	mIFD := retailMAC(kMac, eIFD)

	cmd := make([]byte, 0, 5+40+1)
	cmd = append(cmd, 0x00, 0x82, 0x00, 0x00, 0x28)
	cmd = append(cmd, eIFD...)
	cmd = append(cmd, mIFD...)
	cmd = append(cmd, 0x28)

	resp, err := s.transceiveRaw("external authenticate", cmd)
	if err != nil {
		return err
	}
	if !statusOK(resp) {
		return &AuthenticationError{Reason: fmt.Sprintf("chip rejected external authenticate (sw %X)", statusWord(resp))}
	}
	data := resp[:len(resp)-2]
	if len(data) != 40 {
		return &AuthenticationError{Reason: fmt.Sprintf("external authenticate response length %d, want 40", len(data))}
	}
	if !bytes.Equal(retailMAC(kMac, data[:32]), data[32:]) {
		return &AuthenticationError{Reason: "response MAC mismatch"}
	}

	dec := tdesDecrypt(kEnc, data[:32])
	if !bytes.Equal(dec[8:16], rndIFD) {
		return &AuthenticationError{Reason: "terminal challenge not echoed"}
	}
	kICC := dec[16:32]

	sessionSeed := xor16(kIFD, kICC)
	s.ksEnc = deriveKey(sessionSeed, keyTypeEnc)
	s.ksMac = deriveKey(sessionSeed, keyTypeMac)
	s.ssc = append(append([]byte{}, rndICC[4:]...), rndIFD[4:]...)

	s.state = StateAuthenticated
	slog.Debug("BAC authentication completed")
	return nil
}

// ReadDataGroup selects and reads a single elementary file (1-16). The
// session must be authenticated. A failure leaves the session usable for
// further reads; mandatory-group policy belongs to ReadDataGroups.
func (s *Session) ReadDataGroup(id int) ([]byte, error) {
	if s.state != StateAuthenticated && s.state != StateDataGroupsRead {
		return nil, fmt.Errorf("chip: read data group called in state %q", s.state)
	}
	if id < 1 || id > 16 {
		return nil, fmt.Errorf("chip: data group id %d out of range 1-16", id)
	}

	selectCmd := []byte{0x00, 0xA4, 0x02, 0x0C, 0x02, 0x01, byte(id)}
	if _, err := s.transceive(fmt.Sprintf("select DG%d", id), selectCmd); err != nil {
		return nil, err
	}

	var content []byte
	offset := 0
	for {
		cmd := []byte{0x00, 0xB0, byte(offset >> 8), byte(offset), readChunkSize}
		resp, err := s.transceiveRaw(fmt.Sprintf("read DG%d", id), cmd)
		if err != nil {
			return nil, err
		}
		sw := statusWord(resp)
		data := resp[:len(resp)-2]

		switch {
		case sw == 0x9000:
			content = append(content, data...)
			if len(data) < readChunkSize {
				return content, nil
			}
			offset += len(data)
		case (sw == 0x6B00 || sw == 0x6282) && len(content) > 0:
			content = append(content, data...)
			return content, nil
		default:
			return nil, fmt.Errorf("chip: reading DG%d failed at offset %d (sw %X)", id, offset, sw)
		}
	}
}

// ReadDataGroups reads the given groups in order. DG1 holds the MRZ and is
// mandatory: its failure is session-fatal. Any other group is optional and
// a failure there is skipped.
func (s *Session) ReadDataGroups(ids []int) (map[int][]byte, error) {
	groups := make(map[int][]byte)
	for _, id := range ids {
		data, err := s.ReadDataGroup(id)
		if err != nil {
			if id == 1 {
				return nil, fmt.Errorf("chip: mandatory DG1 read failed: %w", err)
			}
			slog.Info("Skipping optional data group", "data_group", id, "error", err)
			continue
		}
		groups[id] = data
	}
	s.state = StateDataGroupsRead
	return groups, nil
}

// Close releases the transport. Idempotent; it must run on every exit path
// even after a prior failure.
func (s *Session) Close() error {
	if s.state == StateClosed {
		return nil
	}
	s.state = StateClosed
	if err := s.transport.Close(); err != nil {
		return &TransportError{Op: "close", Err: err}
	}
	return nil
}

// transceive sends a command and requires SW 9000, returning the response
// data without the status word.
func (s *Session) transceive(op string, cmd []byte) ([]byte, error) {
	resp, err := s.transceiveRaw(op, cmd)
	if err != nil {
		return nil, err
	}
	if !statusOK(resp) {
		return nil, fmt.Errorf("chip: %s failed (sw %X)", op, statusWord(resp))
	}
	return resp[:len(resp)-2], nil
}

// transceiveRaw sends a command and returns the full response including the
// status word, enforcing the session deadline.
func (s *Session) transceiveRaw(op string, cmd []byte) ([]byte, error) {
	if !s.deadline.IsZero() && time.Now().After(s.deadline) {
		return nil, &TransportError{Op: op, Err: ErrTimeout}
	}
	resp, err := s.transport.Transceive(cmd)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	if len(resp) < 2 {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("response too short (%d bytes)", len(resp))}
	}
	return resp, nil
}

func statusWord(resp []byte) uint16 {
	return uint16(resp[len(resp)-2])<<8 | uint16(resp[len(resp)-1])
}

func statusOK(resp []byte) bool {
	return statusWord(resp) == 0x9000
}
