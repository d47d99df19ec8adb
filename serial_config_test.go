package comm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateLineParams(t *testing.T) {
	tests := []struct {
		name     string
		baud     int
		dataBits int
		stopBits StopBits
		parity   Parity
		wantErr  bool
	}{
		{"9600 8N1", 9600, 8, StopBits1, ParityNone, false},
		{"115200 7E2", 115200, 7, StopBits2, ParityEven, false},
		{"50 5O1.5", 50, 5, StopBits1Half, ParityOdd, false},
		{"space parity", 4000000, 6, StopBits1, ParitySpace, false},
		{"nonstandard baud", 12345, 8, StopBits1, ParityNone, true},
		{"zero baud", 0, 8, StopBits1, ParityNone, true},
		{"nine data bits", 9600, 9, StopBits1, ParityNone, true},
		{"four data bits", 9600, 4, StopBits1, ParityNone, true},
		{"zero stop bits", 9600, 8, 0, ParityNone, true},
		{"unknown parity", 9600, 8, StopBits1, Parity(7), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateLineParams(tt.baud, tt.dataBits, tt.stopBits, tt.parity)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrUnsupportedOperation)
			var ue *UnsupportedOperationError
			assert.True(t, errors.As(err, &ue))
			assert.Equal(t, "set serial port params", ue.Op)
		})
	}
}

func TestValidateFlowControl(t *testing.T) {
	tests := []struct {
		name    string
		fc      FlowControl
		wantErr bool
	}{
		{"none", FlowControlNone, false},
		{"rtscts both ways", FlowControlRTSCTSIn | FlowControlRTSCTSOut, false},
		{"xonxoff both ways", FlowControlXonXoffIn | FlowControlXonXoffOut, false},
		{"hardware in, software out", FlowControlRTSCTSIn | FlowControlXonXoffOut, false},
		{"mixed input", FlowControlRTSCTSIn | FlowControlXonXoffIn, true},
		{"mixed output", FlowControlRTSCTSOut | FlowControlXonXoffOut, true},
		{"unknown bits", FlowControl(1 << 6), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFlowControl(tt.fc)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedOperation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSerialConfigStrings(t *testing.T) {
	assert.Equal(t, "9600 8N1 flow=none", DefaultSerialConfig().String())

	sc := SerialConfig{BaudRate: 19200, DataBits: 7, StopBits: StopBits1Half, Parity: ParityMark,
		FlowControl: FlowControlRTSCTSIn | FlowControlXonXoffOut}
	assert.Equal(t, "19200 7M1.5 flow=rtscts-in|xonxoff-out", sc.String())
	assert.True(t, sc.FlowControl.Hardware())
	assert.True(t, sc.FlowControl.Software())
	assert.False(t, FlowControlNone.Hardware())
}

func TestIsSupportedBaudRate(t *testing.T) {
	for _, rate := range []int{50, 9600, 115200, 921600, 4000000} {
		assert.True(t, IsSupportedBaudRate(rate), rate)
	}
	for _, rate := range []int{0, -9600, 9601, 128000} {
		assert.False(t, IsSupportedBaudRate(rate), rate)
	}
}

func TestErrorTypes(t *testing.T) {
	inUse := &PortInUseError{Port: "COM1", Owner: "app1"}
	assert.ErrorIs(t, inUse, ErrPortInUse)
	assert.Equal(t, `port COM1 in use by "app1"`, inUse.Error())

	cause := errors.New("ioctl failed")
	ue := &UnsupportedOperationError{Op: "configure", Reason: "9600 8N1 flow=none", Err: cause}
	assert.ErrorIs(t, ue, ErrUnsupportedOperation)
	assert.ErrorIs(t, ue, cause)
	assert.Equal(t, "configure: unsupported: 9600 8N1 flow=none: ioctl failed", ue.Error())
}
