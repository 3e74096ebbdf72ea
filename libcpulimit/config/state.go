package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"

	"m-cpulimit/libcpulimit/constant"

	log "github.com/sirupsen/logrus"
)

// 状态目录，可以通过全局 flag --root 修改
var statePath = constant.StatePath

// SetStatePath 修改保存 limiter 状态的目录，dir 为空时保持不变
func SetStatePath(dir string) {
	if dir != "" {
		statePath = dir
	}
}

func StatePath() string {
	return statePath
}

// 将 limiter 的配置信息持久化到 /run/m-cpulimit/<ID>/config.json
func RecordConfig(conf *Config) error {
	dir := path.Join(statePath, conf.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create state dir %s error: %v", dir, err)
	}

	data, err := json.Marshal(conf)
	if err != nil {
		return fmt.Errorf("json.Marshal() config error: %v", err)
	}

	file := path.Join(dir, constant.ConfigName)
	if err := os.WriteFile(file, data, 0644); err != nil {
		return fmt.Errorf("os.WriteFile() to file %v fail: %v", file, err)
	}
	return nil
}

// 删除 limiter 的状态信息
func DeleteConfig(conf *Config) {
	dir := path.Join(statePath, conf.ID)
	if err := os.RemoveAll(dir); err != nil {
		log.Warnf("remove state dir %s error: %v", dir, err)
	}
}

// 根据 ID 读取 limiter 的配置信息
func GetConfigFromID(id string) (*Config, error) {
	file := path.Join(statePath, id, constant.ConfigName)
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read config file %s error: %v", file, err)
	}

	conf := &Config{}
	if err := json.Unmarshal(data, conf); err != nil {
		return nil, fmt.Errorf("json.Unmarshal() config file %s error: %v", file, err)
	}
	return conf, nil
}

// 读取状态目录下所有 limiter 的配置信息
func ListConfigs() ([]*Config, error) {
	files, err := os.ReadDir(statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir %s error: %v", statePath, err)
	}

	confs := make([]*Config, 0, len(files))
	for _, file := range files {
		conf, err := GetConfigFromID(file.Name())
		if err != nil {
			log.Warningf("get config from id %s error: %v", file.Name(), err)
			continue
		}
		confs = append(confs, conf)
	}
	return confs, nil
}

// 根据名称、ID 前缀或者被限流进程的 PID 查找 limiter
func FindConfig(ref string) (*Config, error) {
	confs, err := ListConfigs()
	if err != nil {
		return nil, err
	}

	pid, pidErr := strconv.Atoi(ref)

	var found []*Config
	for _, conf := range confs {
		switch {
		case conf.Name == ref, conf.ID == ref:
			return conf, nil
		case pidErr == nil && conf.Pid == pid:
			found = append(found, conf)
		case strings.HasPrefix(conf.ID, ref):
			found = append(found, conf)
		}
	}

	switch len(found) {
	case 0:
		return nil, fmt.Errorf("limiter %s not found", ref)
	case 1:
		return found[0], nil
	}
	return nil, fmt.Errorf("limiter reference %s is ambiguous", ref)
}
