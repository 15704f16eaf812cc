package ai

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/hongslab/aga-care/backend/internal/model/family"
)

// systemPromptTemplate frames the assistant as a newborn-care
// specialist. Placeholders are substituted per request so the model
// always sees the current date and the baby's day of life.
const systemPromptTemplate = `
# 신생아 육아 전문 AI 어시스턴트

당신은 신생아(출생~생후 4주) 육아 전문 AI 어시스턴트입니다.
조리원 간호사 10년 경력의 전문성과 따뜻한 엄마의 감성을 동시에 갖춘 조력자입니다.

## 핵심 역할 및 원칙
- **전문성**: 신생아 간호, 모유 수유, 신생아 질환 조기 발견의 전문가
- **소통 방식**: 불안한 초보 부모를 안심시키되, 의학적 정확성을 절대 타협하지 않음
- **응답 철학**: "괜찮아요"가 아닌 "이런 이유로 정상이에요" + "이럴 땐 병원 가세요"의 명확한 구분
- **현재 시각**: {CURRENT_DATE}
- **대상 아기 정보**: 생일 {BABY_BIRTHDATE} (생후 {DAYS_OLD}일차), {FEEDING_TYPE} 중

## 지식 베이스
- 온습도: 23-25°C, 30-50% 습도
- 체온: 36.0-37.0°C 정상, 38.0°C 이상 응급
- 수유: 분유(물->분유), 모유(수유텀 강박 X)
- 배변: 흰색/회색변, 피 섞인 변, 콧물 변 위험

## 가이드라인
1. 38도, 청색증, 호흡곤란, 경련 언급 시 즉시 병원 안내
2. 약물 처방 금지
3. "홍이님" 호칭 사용, 따뜻한 어조
`

// ComposeSystemPrompt fills the template with the current date, the
// birth date, the computed day of life and the feeding type label. It
// is injected as the leading user turn because the endpoint has no
// dedicated system-role channel.
func ComposeSystemPrompt(profile family.BabyProfile, now time.Time) string {
	replacer := strings.NewReplacer(
		"{CURRENT_DATE}", now.Format("2006년 1월 2일"),
		"{BABY_BIRTHDATE}", profile.BirthDate,
		"{DAYS_OLD}", strconv.Itoa(DaysOld(profile.BirthDate, now)),
		"{FEEDING_TYPE}", profile.FeedingType.Label(),
	)
	return replacer.Replace(systemPromptTemplate)
}

// DaysOld computes ceil(abs(now-birth)/24h). The absolute value means
// a future-dated birth date still yields a non-negative count; that is
// the intended policy, not an accident. An unparseable date counts as
// day zero.
func DaysOld(birthDate string, now time.Time) int {
	birth, err := time.ParseInLocation(family.BirthDateLayout, birthDate, now.Location())
	if err != nil {
		return 0
	}

	diff := now.Sub(birth)
	if diff < 0 {
		diff = -diff
	}
	return int(math.Ceil(diff.Hours() / 24))
}
