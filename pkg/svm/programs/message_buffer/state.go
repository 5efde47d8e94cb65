package message_buffer

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	bin "github.com/gagliardetto/binary"

	"github.com/naviprotocol/pyth-crosschain/pkg/types"
)

// Seeds
const (
	SeedMessage   = "message"
	SeedWhitelist = "whitelist"
)

const (
	// DiscriminatorLen is the length of account and instruction discriminators.
	DiscriminatorLen = 8

	// MaxAllowedPrograms bounds the whitelist; its account is sized for it.
	MaxAllowedPrograms = 32

	// WhitelistLen is discriminator + bump + admin + vec len + allowed programs.
	WhitelistLen = DiscriminatorLen + 1 + 32 + 4 + MaxAllowedPrograms*32

	// MaxEndOffsets is the number of message end offsets in a buffer header.
	MaxEndOffsets = 255

	// HeaderLen is discriminator + bump + version + header_len + end_offsets.
	HeaderLen = DiscriminatorLen + 1 + 1 + 2 + MaxEndOffsets*2

	// MessageBufferVersion is written into headers of new buffers.
	MessageBufferVersion = 1
)

// Account discriminators
var (
	WhitelistDiscriminator     = AccountDiscriminator("Whitelist")
	MessageBufferDiscriminator = AccountDiscriminator("MessageBuffer")
)

// AccountDiscriminator returns sha256("account:<name>")[:8].
func AccountDiscriminator(name string) [DiscriminatorLen]byte {
	var d [DiscriminatorLen]byte
	sum := sha256.Sum256([]byte("account:" + name))
	copy(d[:], sum[:DiscriminatorLen])
	return d
}

// CheckDiscriminator verifies the leading bytes of account data.
func CheckDiscriminator(data []byte, want [DiscriminatorLen]byte) error {
	if len(data) < DiscriminatorLen {
		return fmt.Errorf("%w: %d bytes of data", ErrAccountDiscriminatorMismatch, len(data))
	}
	if !bytes.Equal(data[:DiscriminatorLen], want[:]) {
		return fmt.Errorf("%w: got %x, want %x", ErrAccountDiscriminatorMismatch, data[:DiscriminatorLen], want)
	}
	return nil
}

// Whitelist records the admin and the program authorities allowed to own
// message buffers.
type Whitelist struct {
	Bump            uint8
	Admin           types.Pubkey
	AllowedPrograms []types.Pubkey
}

func (w *Whitelist) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.WriteBytes(WhitelistDiscriminator[:], false); err != nil {
		return err
	}
	if err := encoder.WriteUint8(w.Bump); err != nil {
		return err
	}
	if err := encoder.WriteBytes(w.Admin[:], false); err != nil {
		return err
	}
	if err := encoder.WriteUint32(uint32(len(w.AllowedPrograms)), bin.LE); err != nil {
		return err
	}
	for _, pk := range w.AllowedPrograms {
		if err := encoder.WriteBytes(pk[:], false); err != nil {
			return err
		}
	}
	return nil
}

func (w *Whitelist) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	disc, err := decoder.ReadBytes(DiscriminatorLen)
	if err != nil {
		return err
	}
	if !bytes.Equal(disc, WhitelistDiscriminator[:]) {
		return ErrAccountDiscriminatorMismatch
	}
	if w.Bump, err = decoder.ReadUint8(); err != nil {
		return err
	}
	admin, err := decoder.ReadBytes(32)
	if err != nil {
		return err
	}
	copy(w.Admin[:], admin)
	n, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return err
	}
	if n > MaxAllowedPrograms {
		return fmt.Errorf("%w: %d allowed programs", ErrTooManyAllowedPrograms, n)
	}
	w.AllowedPrograms = make([]types.Pubkey, n)
	for i := range w.AllowedPrograms {
		pk, err := decoder.ReadBytes(32)
		if err != nil {
			return err
		}
		copy(w.AllowedPrograms[i][:], pk)
	}
	return nil
}

// Marshal encodes the whitelist into a WhitelistLen byte account image.
func (w *Whitelist) Marshal() ([]byte, error) {
	if len(w.AllowedPrograms) > MaxAllowedPrograms {
		return nil, fmt.Errorf("%w: %d", ErrTooManyAllowedPrograms, len(w.AllowedPrograms))
	}
	buf := new(bytes.Buffer)
	if err := w.MarshalWithEncoder(bin.NewBinEncoder(buf)); err != nil {
		return nil, err
	}
	data := make([]byte, WhitelistLen)
	copy(data, buf.Bytes())
	return data, nil
}

// UnmarshalWhitelist decodes a whitelist account.
func UnmarshalWhitelist(data []byte) (*Whitelist, error) {
	if err := CheckDiscriminator(data, WhitelistDiscriminator); err != nil {
		return nil, err
	}
	w := new(Whitelist)
	if err := w.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, fmt.Errorf("%w: whitelist: %v", ErrAccountDidNotDeserialize, err)
	}
	return w, nil
}

// MessageBufferHeader is the fixed-layout prefix of a message buffer
// account. Message data follows it.
type MessageBufferHeader struct {
	Bump       uint8
	Version    uint8
	HeaderLen  uint16
	EndOffsets [MaxEndOffsets]uint16
}

// NewMessageBufferHeader returns the header of an empty buffer.
func NewMessageBufferHeader(bump uint8) *MessageBufferHeader {
	return &MessageBufferHeader{
		Bump:      bump,
		Version:   MessageBufferVersion,
		HeaderLen: HeaderLen,
	}
}

func (h *MessageBufferHeader) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.WriteBytes(MessageBufferDiscriminator[:], false); err != nil {
		return err
	}
	if err := encoder.WriteUint8(h.Bump); err != nil {
		return err
	}
	if err := encoder.WriteUint8(h.Version); err != nil {
		return err
	}
	if err := encoder.WriteUint16(h.HeaderLen, bin.LE); err != nil {
		return err
	}
	for _, off := range h.EndOffsets {
		if err := encoder.WriteUint16(off, bin.LE); err != nil {
			return err
		}
	}
	return nil
}

func (h *MessageBufferHeader) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	if _, err := decoder.ReadBytes(DiscriminatorLen); err != nil {
		return err
	}
	var err error
	if h.Bump, err = decoder.ReadUint8(); err != nil {
		return err
	}
	if h.Version, err = decoder.ReadUint8(); err != nil {
		return err
	}
	if h.HeaderLen, err = decoder.ReadUint16(bin.LE); err != nil {
		return err
	}
	for i := range h.EndOffsets {
		if h.EndOffsets[i], err = decoder.ReadUint16(bin.LE); err != nil {
			return err
		}
	}
	return nil
}

// Store writes the header into the start of data, which must hold at
// least HeaderLen bytes.
func (h *MessageBufferHeader) Store(data []byte) error {
	if len(data) < HeaderLen {
		return fmt.Errorf("%w: %d bytes", ErrMessageBufferTooSmall, len(data))
	}
	buf := bytes.NewBuffer(make([]byte, 0, HeaderLen))
	if err := h.MarshalWithEncoder(bin.NewBinEncoder(buf)); err != nil {
		return err
	}
	copy(data, buf.Bytes())
	return nil
}

// UnmarshalMessageBufferHeader decodes the header of a message buffer account.
func UnmarshalMessageBufferHeader(data []byte) (*MessageBufferHeader, error) {
	if err := CheckDiscriminator(data, MessageBufferDiscriminator); err != nil {
		return nil, err
	}
	h := new(MessageBufferHeader)
	if err := h.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, fmt.Errorf("%w: message buffer header: %v", ErrAccountDidNotDeserialize, err)
	}
	return h, nil
}
