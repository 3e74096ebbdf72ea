package config

import (
	"crypto/sha256"
	"fmt"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"golang.org/x/exp/rand"
	"gopkg.in/yaml.v3"
)

// 生成 limiter 的 Config 配置
func CreateConfig(ctx *cli.Context) (*Config, error) {
	conf := &Config{}

	// 先读取配置文件，再用命令行参数覆盖
	if path := ctx.String("config"); path != "" {
		fileConf, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		if err := fileConf.apply(conf); err != nil {
			return nil, err
		}
	}

	if ctx.IsSet("limit") || conf.Limit == 0 {
		conf.Limit = ctx.Float64("limit")
	}
	if ctx.IsSet("include-children") {
		conf.IncludeChildren = ctx.Bool("include-children")
	}
	if ctx.IsSet("allow-threads") {
		conf.AllowThreads = ctx.Bool("allow-threads")
	}
	if ctx.IsSet("slice") {
		conf.Slice = ctx.Duration("slice")
	}
	if conf.Limit <= 0 {
		return nil, fmt.Errorf("missing or invalid cpu limit: %v", conf.Limit)
	}

	conf.Pid = ctx.Int("pid")
	for _, arg := range ctx.Args() {
		conf.CmdArray = append(conf.CmdArray, arg)
	}

	// limiter 创建时间
	conf.CreatedTime = time.Now().Format("2006-01-02 15:04:05")

	// 从命令行参数中获取 limiter 名称
	if ctx.String("name") != "" {
		conf.Name = ctx.String("name")
	} else { // 如果没有指定名称，则随机生成一个
		conf.Name = generateLimiterName()
	}

	// 生成 limiter ID
	conf.ID = generateLimiterID(conf.Name + conf.CreatedTime + strconv.Itoa(os.Getpid()))

	log.Debugf("create config %s: limit %.2f%%, children %v", conf.Name, conf.Limit, conf.IncludeChildren)
	return conf, nil
}

// LoadFile 读取 YAML 配置文件
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s error: %v", path, err)
	}

	fileConf := &FileConfig{}
	if err := yaml.Unmarshal(data, fileConf); err != nil {
		return nil, fmt.Errorf("parse config file %s error: %v", path, err)
	}
	return fileConf, nil
}

func (f *FileConfig) apply(conf *Config) error {
	if f.Limit != nil {
		conf.Limit = *f.Limit
	}
	if f.IncludeChildren != nil {
		conf.IncludeChildren = *f.IncludeChildren
	}
	if f.AllowThreads != nil {
		conf.AllowThreads = *f.AllowThreads
	}
	if f.Slice != "" {
		slice, err := time.ParseDuration(f.Slice)
		if err != nil || slice <= 0 {
			return fmt.Errorf("invalid slice %q in config file", f.Slice)
		}
		conf.Slice = slice
	}
	return nil
}

// 生成 limiter ID
func generateLimiterID(input string) string {
	hash := sha256.New()
	hash.Write([]byte(input))
	return fmt.Sprintf("%x", hash.Sum(nil))
}

// 预定义的形容词列表
var adjectives = []string{
	"admiring", "adoring", "affectionate", "agitated", "amazing",
	"angry", "awesome", "blissful", "boring", "brave",
	"charming", "clever", "cool", "compassionate", "competent",
	"confident", "cranky", "crazy", "dazzling", "determined",
}

// 预定义的名词列表
var nouns = []string{
	"albattani", "allen", "almeida", "agnesi", "archimedes",
	"ardinghelli", "aryabhata", "austin", "babbage", "banach",
	"banzai", "bardeen", "bartik", "bassi", "beaver",
	"bell", "benz", "bhabha", "bhaskara", "blackwell",
}

// 生成随机 limiter 名称
func generateLimiterName() string {
	rand.Seed(uint64(time.Now().UnixNano()))
	adj := adjectives[rand.Intn(len(adjectives))]
	noun := nouns[rand.Intn(len(nouns))]
	return fmt.Sprintf("%s_%s", adj, noun)
}
