package main

import (
	"fmt"

	"thor-mesh/internal/packet"
	"thor-mesh/internal/routing"
)

// ----------------------------------------------------------------------------
// Three-node walk-through: A (victim, no internet) queues a payload, B (mule)
// relays it, C (gateway) has the internet. Exercises queueing, discovery,
// two-hop inference, Internet Gravity, and the backtrack reset.
// ----------------------------------------------------------------------------

func step(name string) {
	fmt.Printf("\n========== %s ==========\n", name)
}

func printFrame(frame []byte) {
	fmt.Print("[ ")
	for _, b := range frame {
		fmt.Printf("%02X ", b)
	}
	fmt.Println("]")
}

func main() {
	// Node C, the gateway, only ever beacons in this storyline; its frames
	// are built directly with the packet helpers.
	nodeA := routing.NewEngine(1, nil)
	nodeB := routing.NewEngine(2, nil)

	const internetSink = 9999

	step("STEP 1: Node A creates a DATA packet but has no neighbours")
	if out := nodeA.SendPacket(internetSink, 1, 1, 1, []byte("Help Me")); out == nil {
		fmt.Println("Node A queued packet (no route yet)")
	} else {
		fmt.Println("ERROR: Node A should not forward yet!")
	}

	step("STEP 2: Node B appears and sends HELLO")
	helloB := packet.CreateHello(0, 2, 2, 10)
	if _, err := nodeA.HandleHello(helloB); err != nil {
		fmt.Println("ERROR:", err)
	}
	nodeA.NeighbourStore(2, -65, false, false, false) // RSSI -65 → ideal band
	fmt.Println("Node A discovered Node B (RSSI -65, no internet)")

	step("STEP 3: Node B discovers Node C with Internet")
	helloC := packet.CreateHello(0, 3, 3, 20)
	if _, err := nodeB.HandleHello(helloC); err != nil {
		fmt.Println("ERROR:", err)
	}
	nodeB.NeighbourStore(3, -72, true, false, false)
	fmt.Println("Node B discovered Node C (RSSI -72, DIRECT internet)")

	step("STEP 4: Node B ACKs A and informs it that C exists (indirect internet)")
	ackFromB := packet.CreateACK(1, 2, 2, 1, 11, false, true)
	ackHdr, err := nodeA.HandleAck(ackFromB)
	if err != nil {
		fmt.Println("ERROR:", err)
	}
	nodeA.NeighbourStore(ackHdr.SenderID, -65, ackHdr.MyInternet, ackHdr.IntNeighbour, false)
	fmt.Println("Node A learns: Node B has a neighbour with Internet.")

	step("STEP 5: Node A flushes queue. Best hop should be B (indirect internet).")
	batch := nodeA.ProcessQueue()
	if len(batch) > 0 {
		fmt.Println("Node A forwarded packet to B:")
		printFrame(batch[0])
	} else {
		fmt.Println("ERROR: Queue did not flush!")
	}

	step("STEP 6: Node B forwards to C using Internet Gravity")
	forwardToC, _ := nodeB.HandleData(batch[0], 2)
	if forwardToC != nil {
		fmt.Println("Node B forwarded packet to Node C:")
		printFrame(forwardToC)
	} else {
		fmt.Println("ERROR: B should have forwarded to internet node C!")
	}

	step("STEP 7: Node C sends ACK → resets visited bits (success path)")
	ackFromC := packet.CreateACK(1, 3, 3, 2, 30, true, false)
	ackHdrC, err := nodeB.HandleAck(ackFromC)
	if err != nil {
		fmt.Println("ERROR:", err)
	}
	// Delivery evidence from the gateway: re-store C with the visited mark
	// cleared so it is a prime candidate again.
	nodeB.NeighbourStore(ackHdrC.SenderID, -72, ackHdrC.MyInternet, ackHdrC.IntNeighbour, false)
	fmt.Println("Node B resets visited state after successful delivery.")

	step("FINAL: THOR Simulation Complete")
	fmt.Println("All routing stages successfully simulated.")
}
