// Package mqtt provides MQTT client connectivity for the appliance bridge.
//
// The bridge talks to two audiences over the same broker:
//
//	appliances  <->  {registers}/{device}/rx|tx  <->  bridge
//	bridge      <->  {base}/{device}/{property}[/set]  <->  automation hub
//
// This package manages:
//   - Connection with auto-reconnect and subscription restore
//   - A retained availability topic backed by Last Will
//   - Waiting (Publish) and fire-and-forget (PublishAsync) publishing
//   - The Topics builder for both hierarchies
//
// # Usage
//
//	topics := mqtt.Topics{Base: cfg.Hub.BaseTopic, Registers: cfg.Registers.TopicPrefix}
//	client, err := mqtt.Connect(cfg.MQTT, topics.BridgeStatus(cfg.Bridge.ID))
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(topics.AllRegisterRx(), 1, func(topic string, payload []byte) error {
//	    deviceID, ok := topics.ParseRegisterRx(topic)
//	    ...
//	})
package mqtt
