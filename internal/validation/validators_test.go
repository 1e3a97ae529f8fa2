package validation

import "testing"

func TestIsValidCIDR(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"192.168.1.0/24", true},
		{"10.0.0.1", true},
		{"2001:db8::/32", true},
		{"2a03:f80::1", true},
		{"  172.16.0.0/12  ", true},
		{"", false},
		{"   ", false},
		{"not-a-cidr", false},
		{"192.168.1.0/33", false},
		{"300.1.1.1", false},
		{"10.0.0.0/", false},
		{"2001:db8::/129", false},
	}

	for _, tt := range tests {
		if got := IsValidCIDR(tt.input); got != tt.want {
			t.Errorf("IsValidCIDR(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestIsIPv6(t *testing.T) {
	if IsIPv6("192.168.0.0/16") {
		t.Error("IPv4 range classified as IPv6")
	}
	if !IsIPv6("2a03:f80::/29") {
		t.Error("IPv6 range not classified as IPv6")
	}
}

func TestValidateProtocol(t *testing.T) {
	for _, proto := range []string{"TCP", "UDP", "tcp", "udp", " Tcp "} {
		if err := ValidateProtocol(proto); err != nil {
			t.Errorf("ValidateProtocol(%q) = %v, want nil", proto, err)
		}
	}
	for _, proto := range []string{"", "ICMP", "sctp", "anything"} {
		if err := ValidateProtocol(proto); err == nil {
			t.Errorf("ValidateProtocol(%q) = nil, want error", proto)
		}
	}
}

func TestValidatePortNumber(t *testing.T) {
	for _, port := range []int{1, 80, 443, 65535} {
		if err := ValidatePortNumber(port); err != nil {
			t.Errorf("ValidatePortNumber(%d) = %v, want nil", port, err)
		}
	}
	for _, port := range []int{0, -1, 65536, 100000} {
		if err := ValidatePortNumber(port); err == nil {
			t.Errorf("ValidatePortNumber(%d) = nil, want error", port)
		}
	}
}
