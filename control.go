package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/tcolgate/motiontrack/motion"
)

type controlState struct {
	Tracking    bool `json:"tracking"`
	Sensitivity int  `json:"sensitivity"`
}

func writeState(w http.ResponseWriter, det *motion.Detector) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(controlState{
		Tracking:    det.Tracking(),
		Sensitivity: det.Sensitivity(),
	})
}

// trackingHandler starts and stops detection: POST /tracking?on=true
func trackingHandler(det *motion.Detector, log logrus.FieldLogger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			on, err := strconv.ParseBool(r.FormValue("on"))
			if err != nil {
				http.Error(w, "on must be a boolean", http.StatusBadRequest)
				return
			}
			det.SetTracking(on)
			log.WithField("tracking", on).Info("tracking changed")
		} else if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeState(w, det)
	})
}

// sensitivityHandler adjusts the sensitivity: POST /sensitivity?value=40.
// Out of range values are clamped.
func sensitivityHandler(det *motion.Detector, log logrus.FieldLogger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			n, err := strconv.Atoi(r.FormValue("value"))
			if err != nil {
				http.Error(w, "value must be an integer", http.StatusBadRequest)
				return
			}
			det.SetSensitivity(n)
			log.WithField("sensitivity", det.Sensitivity()).Info("sensitivity changed")
		} else if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeState(w, det)
	})
}
