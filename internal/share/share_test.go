package share

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshbridge/internal/metrics"
	"meshbridge/pkg/models"
)

func testLocation() *models.SharedLocation {
	return &models.SharedLocation{
		Lat:        40.8678983,
		Lon:        -119.3353406,
		AltFtMSL:   4000,
		Timestamp:  1717000000,
		Department: "AIRPORT",
		UnitNo:     1,
		Name:       "Airport Truck #1",
	}
}

func TestParseLocation(t *testing.T) {
	loc, err := ParseLocation([]byte(`{"lat":40.5,"lon":-119.25,"alt_ft_msl":4000,` +
		`"timestamp":1717000000,"department":"AIRPORT","unit_no":3,"name":"Cart"}`))
	require.NoError(t, err)

	assert.Equal(t, 40.5, loc.Lat)
	assert.Equal(t, -119.25, loc.Lon)
	assert.Equal(t, 4000, loc.AltFtMSL)
	assert.Equal(t, int64(1717000000), loc.Timestamp)
	assert.Equal(t, "AIRPORT", loc.Department)
	assert.Equal(t, 3, loc.UnitNo)
	assert.Equal(t, "Cart", loc.Name)
}

func TestParseLocationDefaultsName(t *testing.T) {
	loc, err := ParseLocation([]byte(`{"lat":40.5,"lon":-119.25,"alt_ft_msl":4000,` +
		`"timestamp":1717000000,"department":"AIRPORT","unit_no":3}`))
	require.NoError(t, err)
	assert.Equal(t, "AIRPORT_3", loc.Name)
}

func TestParseLocationToleratesExtraKeys(t *testing.T) {
	loc, err := ParseLocation([]byte(`{"lat":40.5,"lon":-119.25,"alt_ft_msl":4000,` +
		`"timestamp":1717000000,"department":"AIRPORT","unit_no":3,"future_field":true}`))
	require.NoError(t, err)
	assert.Equal(t, 3, loc.UnitNo)
}

func TestParseLocationRequiresAllKeys(t *testing.T) {
	for _, missing := range []string{"lat", "lon", "alt_ft_msl", "timestamp", "department", "unit_no"} {
		payload := map[string]string{
			"lat":        `"lat":40.5`,
			"lon":        `"lon":-119.25`,
			"alt_ft_msl": `"alt_ft_msl":4000`,
			"timestamp":  `"timestamp":1717000000`,
			"department": `"department":"AIRPORT"`,
			"unit_no":    `"unit_no":3`,
		}
		delete(payload, missing)

		doc := "{"
		for _, v := range payload {
			doc += v + ","
		}
		doc = doc[:len(doc)-1] + "}"

		_, err := ParseLocation([]byte(doc))
		assert.Error(t, err, "payload without %s must be rejected", missing)
	}
}

func TestParseLocationMalformed(t *testing.T) {
	_, err := ParseLocation([]byte("not json"))
	assert.Error(t, err)
}

func TestEncodeLocationDefaultsName(t *testing.T) {
	loc := testLocation()
	loc.Name = ""

	data, err := EncodeLocation(loc)
	require.NoError(t, err)

	parsed, err := ParseLocation(data)
	require.NoError(t, err)
	assert.Equal(t, "AIRPORT_1", parsed.Name)
}

func TestSendReceiveRoundtrip(t *testing.T) {
	receiver, err := NewReceiver("127.0.0.1", 0, nil, metrics.Noop())
	require.NoError(t, err)
	defer receiver.Close()

	sender, err := NewSender("127.0.0.1", receiver.Port())
	require.NoError(t, err)
	defer sender.Close()

	got := make(chan *models.SharedLocation, 1)
	go func() {
		loc, _ := receiver.ReceiveOne()
		got <- loc
	}()

	require.NoError(t, sender.Send(testLocation()))

	select {
	case loc := <-got:
		require.NotNil(t, loc)
		assert.Equal(t, testLocation(), loc)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for datagram")
	}
}

func TestReceiverDropsUnauthorizedSource(t *testing.T) {
	receiver, err := NewReceiver("127.0.0.1", 0, []string{"10.0.0.5"}, metrics.Noop())
	require.NoError(t, err)
	defer receiver.Close()

	sender, err := NewSender("127.0.0.1", receiver.Port())
	require.NoError(t, err)
	defer sender.Close()

	got := make(chan *models.SharedLocation, 1)
	go func() {
		loc, _ := receiver.ReceiveOne()
		got <- loc
	}()

	require.NoError(t, sender.Send(testLocation()))

	select {
	case loc := <-got:
		assert.Nil(t, loc, "datagram from non-whitelisted source must be dropped")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for datagram")
	}
}

func TestReceiverDropsMalformedDatagram(t *testing.T) {
	receiver, err := NewReceiver("127.0.0.1", 0, nil, metrics.Noop())
	require.NoError(t, err)
	defer receiver.Close()

	conn, err := net.Dial("udp", fmt.Sprintf("127.0.0.1:%d", receiver.Port()))
	require.NoError(t, err)
	defer conn.Close()

	got := make(chan *models.SharedLocation, 1)
	go func() {
		loc, _ := receiver.ReceiveOne()
		got <- loc
	}()

	_, err = conn.Write([]byte("not json"))
	require.NoError(t, err)

	select {
	case loc := <-got:
		assert.Nil(t, loc)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for datagram")
	}
}

func TestReceiverBackgroundLoopFeedsQueue(t *testing.T) {
	receiver, err := NewReceiver("127.0.0.1", 0, nil, metrics.Noop())
	require.NoError(t, err)
	receiver.Start()
	defer receiver.Close()

	sender, err := NewSender("127.0.0.1", receiver.Port())
	require.NoError(t, err)
	defer sender.Close()

	first := testLocation()
	second := testLocation()
	second.UnitNo = 2
	second.Name = "Airport Truck #2"
	require.NoError(t, sender.Send(first))
	require.NoError(t, sender.Send(second))

	units := make(map[int]bool)
	for i := 0; i < 2; i++ {
		select {
		case loc := <-receiver.Queue():
			units[loc.UnitNo] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out draining queue")
		}
	}
	assert.True(t, units[1])
	assert.True(t, units[2])
}
