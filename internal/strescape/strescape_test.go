package strescape

import (
	"testing"
)

func TestNick(t *testing.T) {
	tests := []struct {
		name string
		s    string
		want string
	}{{
		name: "empty string",
		s:    "",
		want: "",
	}, {
		name: "alsa device id",
		s:    "hw:2,0",
		want: "hw:2,0",
	}, {
		name: "pulse device id",
		s:    "alsa_input.usb-MACROSILICON_USB_Video-02.analog-stereo",
		want: "alsa_input.usb-MACROSILICON_USB_Video-02.analog-stereo",
	}, {
		name: "trailing null bytes",
		s:    "hw:1,0\x00\x00\x00",
		want: "hw:1,0",
	}, {
		name: "ansi escape",
		s:    "dev\x1b[31mice",
		want: "dev[31mice",
	}, {
		name: "newline",
		s:    "first\nsecond",
		want: "firstsecond",
	}, {
		name: "invalid utf-8",
		s:    "id \xa0\xa1 end",
		want: "id  end",
	}}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := Nick(tc.s)
			if got != tc.want {
				t.Fatalf("Unexpected result: got %q, want %q",
					got, tc.want)
			}
		})
	}
}

func TestContent(t *testing.T) {
	tests := []struct {
		name string
		s    string
		want string
	}{{
		name: "empty string",
		s:    "",
		want: "",
	}, {
		name: "device name",
		s:    "USB Video: USB Audio (hw:2,0)",
		want: "USB Video: USB Audio (hw:2,0)",
	}, {
		name: "whitespace is kept",
		s:    "Built-in Audio\tAnalog Stereo\n",
		want: "Built-in Audio\tAnalog Stereo\n",
	}, {
		name: "unicode name",
		s:    "Écouteurs Bluetooth ♫",
		want: "Écouteurs Bluetooth ♫",
	}, {
		name: "control chars",
		s:    "Head\x07phones\x00",
		want: "Headphones",
	}, {
		name: "invalid utf-8",
		s:    "Speaker \xff",
		want: "Speaker ",
	}}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := Content(tc.s)
			if got != tc.want {
				t.Fatalf("Unexpected result: got %q, want %q",
					got, tc.want)
			}
		})
	}
}
