// Package mqtt provides MQTT connectivity for the sequence tester.
//
// The tester uses the broker in two directions:
//
//	camera ──packed frame──▶ seqtester/{tester}/frame/{camera}
//	test rig ──JSON command──▶ seqtester/{tester}/command/{device}/{setting}
//
// Frames are the raw msgpack bytes produced by setting.Logger.PackAndReset.
// Commands are applied to the setting logger by the command package.
//
// The client publishes a retained online status on connect and registers a
// Last Will so subscribers see the tester go offline if it crashes.
//
// # Usage
//
//	topics := mqtt.Topics{TesterID: cfg.Tester.ID}
//	client, err := mqtt.Connect(cfg.MQTT, topics)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.Publish(topics.Frame("Cam1"), frame, 1, false)
package mqtt
