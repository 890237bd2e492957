package main

import (
	"os"
	"regexp"
)

// defaultServiceID — имя вершины графа зависимостей вне Kubernetes.
const defaultServiceID = "upload-coordinator"

var (
	// <deployment>-<hash ReplicaSet>-<5 символов пода>
	deploymentPod = regexp.MustCompile(`^(.+)-[a-z0-9]{6,10}-[a-z0-9]{5}$`)
	// <statefulset>-<порядковый номер>
	statefulSetPod = regexp.MustCompile(`^(.+)-[0-9]+$`)
)

// serviceID возвращает имя сервиса для topologymetrics:
// UC_SERVICE_ID, иначе имя владельца пода из hostname.
func serviceID() string {
	if id := os.Getenv("UC_SERVICE_ID"); id != "" {
		return id
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		return defaultServiceID
	}
	return parseOwnerName(host)
}

// parseOwnerName извлекает имя Deployment или StatefulSet из имени пода.
func parseOwnerName(hostname string) string {
	if m := deploymentPod.FindStringSubmatch(hostname); m != nil {
		return m[1]
	}
	if m := statefulSetPod.FindStringSubmatch(hostname); m != nil {
		return m[1]
	}
	return hostname
}
