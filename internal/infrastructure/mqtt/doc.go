// Package mqtt connects the AV daemon to the site MQTT broker.
//
// The broker carries commands in (TV control, matrix routes, audio
// settings), acknowledgements out, and retained state such as audio meter
// values and bridge health. Topic names are built with Topics.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllCommands(), 1, handler)
//
// Subscriptions survive reconnects. A retained status message on
// sportsbar/system/status (also the Last Will) tells dashboards whether
// the daemon is online.
package mqtt
