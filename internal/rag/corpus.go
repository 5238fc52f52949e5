package rag

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// MaintenanceKnowledge 内置车辆保养知识库
// 无论可选数据源是否存在，这些条目始终构成语料的开头部分
var MaintenanceKnowledge = []string{
	"Regular oil changes should be performed every 5,000 to 7,500 km or every 6 months, whichever comes first. Synthetic oil can extend this interval to 10,000 km.",
	"Tire pressure should be checked monthly. Under-inflated tires reduce fuel efficiency by up to 3% and cause uneven wear. Recommended pressure is usually 30-35 PSI.",
	"Brake pads typically need replacement every 40,000 to 70,000 km. Warning signs include squeaking, grinding noises, and longer stopping distances.",
	"Battery life averages 3-5 years. Signs of a weak battery include slow engine cranking, dim headlights, and electrical issues. Test battery voltage regularly.",
	"Coolant should be flushed and replaced every 50,000 km or every 2 years. Low coolant levels can cause engine overheating and severe damage.",
	"Air filters should be replaced every 20,000 to 30,000 km. A clogged air filter reduces engine performance and fuel efficiency.",
	"Transmission fluid should be checked every 50,000 km. Dark or burnt-smelling fluid indicates it needs replacement.",
	"Worn out brakes are the most critical safety concern. Brake condition is one of the top predictors of maintenance needs according to our ML model.",
	"Weak battery status is a strong indicator of maintenance requirement. Battery_Status_Weak is one of the top 3 features driving maintenance predictions.",
	"The number of reported issues is the strongest single predictor of maintenance needs. Vehicles with 3+ issues have very high maintenance probability.",
	"Service history frequency matters: vehicles with fewer past services tend to need more urgent maintenance.",
	"Accident history increases maintenance risk. Each past accident adds to the cumulative wear on vehicle components.",
	"Poor maintenance history significantly increases the probability of needing maintenance compared to good or average maintenance history.",
	"Electric vehicles generally have lower mechanical maintenance needs but battery health monitoring is critical.",
	"For fleet management, prioritize vehicles with high mileage-to-age ratio (usage intensity) for proactive maintenance scheduling.",
	"SHAP analysis shows the top factors driving maintenance prediction: Reported Issues, Brake Condition (Worn Out), Battery Status (Weak), Service History, and Maintenance History.",
}

// DefaultMaxEnrichedRows 富化记录默认采样上限，控制语料和索引规模
const DefaultMaxEnrichedRows = 500

// CorpusConfig 语料装配配置
type CorpusConfig struct {
	InstructionPath string // JSONL 指令数据集路径，空或缺失时跳过
	EnrichedPath    string // 富化车辆记录 CSV 路径，空或缺失时跳过
	MaxEnrichedRows int    // 富化记录采样上限，<=0 时取 DefaultMaxEnrichedRows
}

// AssembleCorpus 汇总所有可用数据源为有序的文本块列表
// 顺序固定：内置知识 -> 指令块 -> 富化记录块；可选来源缺失或损坏时静默跳过
func AssembleCorpus(cfg CorpusConfig) []string {
	maxRows := cfg.MaxEnrichedRows
	if maxRows <= 0 {
		maxRows = DefaultMaxEnrichedRows
	}

	chunks := make([]string, 0, len(MaintenanceKnowledge))
	chunks = append(chunks, MaintenanceKnowledge...)
	chunks = append(chunks, LoadInstructionChunks(cfg.InstructionPath)...)
	chunks = append(chunks, LoadEnrichedChunks(cfg.EnrichedPath, maxRows)...)
	return chunks
}

// instructionRecord JSONL 指令数据集的单条记录
type instructionRecord struct {
	Instruction string `json:"instruction"`
	Input       string `json:"input"`
	Output      string `json:"output"`
}

// LoadInstructionChunks 从 JSONL 指令数据集加载问答块
// 文件缺失返回空列表；损坏的行被跳过而不是中断
func LoadInstructionChunks(path string) []string {
	if path == "" {
		return nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer file.Close()

	var chunks []string
	scanner := bufio.NewScanner(file)
	// 指令记录可能含较长的 output，放宽单行缓冲上限
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var record instructionRecord
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			continue
		}
		// 三个字段全空的记录没有检索价值
		if strings.TrimSpace(record.Instruction+record.Input+record.Output) == "" {
			continue
		}
		chunks = append(chunks, fmt.Sprintf("Q: %s %s\nA: %s", record.Instruction, record.Input, record.Output))
	}
	return chunks
}

// LoadEnrichedChunks 从富化车辆记录 CSV 加载摘要块，最多取 maxRows 条
// 每条块拼接结构化字段与自由文本摘要/建议；空行被丢弃
func LoadEnrichedChunks(path string, maxRows int) []string {
	if path == "" {
		return nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	field := func(row []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	wanted := []string{
		"Vehicle_Model", "Vehicle_Age", "Mileage", "Reported_Issues", "risk_level",
		"Tire_Condition", "Brake_Condition", "Battery_Status",
		"vehicle_summary", "maintenance_recommendation",
	}

	var chunks []string
	for len(chunks) < maxRows {
		row, err := reader.Read()
		if err != nil {
			break
		}

		// 所有关注列都为空的行不产生文本块
		empty := true
		for _, name := range wanted {
			if field(row, name) != "" {
				empty = false
				break
			}
		}
		if empty {
			continue
		}

		chunk := fmt.Sprintf(
			"Vehicle: %s, Age: %s years, Mileage: %s km, Issues: %s, Risk: %s. Tire: %s, Brake: %s, Battery: %s. %s %s",
			field(row, "Vehicle_Model"),
			field(row, "Vehicle_Age"),
			field(row, "Mileage"),
			field(row, "Reported_Issues"),
			field(row, "risk_level"),
			field(row, "Tire_Condition"),
			field(row, "Brake_Condition"),
			field(row, "Battery_Status"),
			field(row, "vehicle_summary"),
			field(row, "maintenance_recommendation"),
		)
		chunks = append(chunks, strings.TrimSpace(chunk))
	}
	return chunks
}
