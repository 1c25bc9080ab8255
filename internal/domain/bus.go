package domain

// MessageBus routes trigger events from channels to the dispatcher and
// replies back to the channel that produced them.
type MessageBus interface {
	Publish(ev TriggerEvent)
	Subscribe() <-chan TriggerEvent
	SendOutbound(msg Outbound)
	OnOutbound(channelName string, handler func(Outbound))
	Close()
}
