// Location share utility: send one test location to a peer, or listen for
// shared locations and print them.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	"meshbridge/internal/metrics"
	"meshbridge/internal/share"
	"meshbridge/pkg/models"
	"meshbridge/pkg/utils"
)

func main() {
	port := flag.Int("port", 6666, "The port to listen on")
	sendTestIP := flag.String("send-test-ip", "", "Send a test location to the given ip, then exit")
	sendTestPort := flag.Int("send-test-port", 8869, "Port to send the test location to")
	flag.Parse()

	// Send a test location and exit
	if *sendTestIP != "" {
		sender, err := share.NewSender(*sendTestIP, *sendTestPort)
		utils.CheckFatal(err, "opening sender")
		defer sender.Close()

		loc := &models.SharedLocation{
			Lat:        40.8678983,
			Lon:        -119.3353406,
			AltFtMSL:   4000,
			Timestamp:  time.Now().Unix(),
			Department: "AIRPORT_TEST",
			UnitNo:     1,
			Name:       "Airport Truck #1",
		}
		utils.CheckFatal(sender.Send(loc), "sending test location")
		fmt.Printf("Sent test location to %s, exiting\n", *sendTestIP)
		return
	}

	// Listen for data and print it to stdout
	receiver, err := share.NewReceiver("0.0.0.0", *port, nil, metrics.Noop())
	utils.CheckFatal(err, "binding receiver")
	defer receiver.Close()

	fmt.Printf("Listening for shared locations on port %d\n", receiver.Port())
	for {
		loc, err := receiver.ReceiveOne()
		if err != nil {
			log.Fatalf("Receive failed: %v", err)
		}
		if loc == nil {
			continue
		}
		data, _ := json.Marshal(loc)
		fmt.Printf("Received shared location: %s\n", data)
	}
}
