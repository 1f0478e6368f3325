package mesh

type INetwork interface {
	Run()
	Join(n INode)
	Leave(nodeID uint32)
	// BroadcastFrame puts a frame on the air; every node in range receives
	// it with an RSSI derived from its distance to the sender.
	BroadcastFrame(frame []byte, sender INode)
}
