package discovery

import "testing"

func TestParseSSDPResponse(t *testing.T) {
	response := "HTTP/1.1 200 OK\r\n" +
		"CACHE-CONTROL: max-age=1800\r\n" +
		"LOCATION: http://192.168.1.1:5000/rootDesc.xml\r\n" +
		"SERVER: Linux/3.10 UPnP/1.0 MiniUPnPd/2.1\r\n" +
		"USN: uuid:824ff22b-8c7d-41c5-a131-44f534e12555::upnp:rootdevice\r\n" +
		"\r\n"

	obs := parseSSDPResponse("192.168.1.1", response)

	if obs.Source != "ssdp" || obs.TypeHint != "ssdp" {
		t.Fatalf("source/type = %q/%q", obs.Source, obs.TypeHint)
	}
	if obs.IPAddress != "192.168.1.1" {
		t.Fatalf("ip = %q", obs.IPAddress)
	}
	if obs.Vendor != "Linux/3.10 UPnP/1.0 MiniUPnPd/2.1" {
		t.Fatalf("vendor = %q", obs.Vendor)
	}
	if obs.Hostname != "uuid:824ff22b-8c7d-41c5-a131-44f534e12555::upnp:rootdevice" {
		t.Fatalf("hostname = %q", obs.Hostname)
	}
}

func TestParseSSDPResponseHeaderCaseInsensitive(t *testing.T) {
	response := "HTTP/1.1 200 OK\r\nserver: FancyOS/1.0\r\n\r\n"

	obs := parseSSDPResponse("10.0.0.2", response)
	if obs.Vendor != "FancyOS/1.0" {
		t.Fatalf("vendor = %q", obs.Vendor)
	}
}

func TestParseSSDPResponseEmptyBody(t *testing.T) {
	obs := parseSSDPResponse("10.0.0.3", "HTTP/1.1 200 OK\r\n\r\n")
	if obs.Vendor != "" || obs.Hostname != "" {
		t.Fatalf("expected empty fields, got %+v", obs)
	}
}
